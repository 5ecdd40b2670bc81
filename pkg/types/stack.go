package types

import (
	"fmt"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// AllStacks is the reserved pseudo-stack name that addresses every paper in
// the store. It can be read from but never created.
const AllStacks = "all"

// DefaultStackName is the stack created when a data directory is first
// opened.
const DefaultStackName = "base"

// Stack colors, in the order new stacks receive them.
const (
	ColorRed         = "red"
	ColorYellow      = "yellow"
	ColorBlue        = "blue"
	ColorGreen       = "green"
	ColorCyan        = "cyan"
	ColorLightRed    = "light_red"
	ColorLightYellow = "light_yellow"
	ColorLightBlue   = "light_blue"
	ColorLightGreen  = "light_green"
	ColorLightCyan   = "light_cyan"
)

// StackColors is the palette new stacks draw from.
var StackColors = []string{
	ColorRed,
	ColorYellow,
	ColorBlue,
	ColorGreen,
	ColorCyan,
	ColorLightRed,
	ColorLightYellow,
	ColorLightBlue,
	ColorLightGreen,
	ColorLightCyan,
}

// Stack is a named set of paper references, analogous to a branch.
// Membership is stored separately and addressed through the stack's name.
type Stack struct {
	StackID   string    `json:"stack_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

// StackEntry is one row of a registry listing.
type StackEntry struct {
	Stack
	Active     bool `json:"active"`
	PaperCount int  `json:"paper_count"`
}

var stackNamePattern = regexp.MustCompile(`^[A-Za-z0-9._/-]+$`)

// stackNameRules validate a user-supplied stack name.
var stackNameRules = []validation.Rule{
	validation.Required,
	validation.Length(1, 64),
	validation.Match(stackNamePattern).Error("may only contain letters, digits, '.', '_', '-' and '/'"),
	validation.NotIn(AllStacks).Error(fmt.Sprintf("%q is reserved", AllStacks)),
}

// ValidateStackName checks that name is usable for a new stack. Failures
// wrap ErrInvalidName.
func ValidateStackName(name string) error {
	if err := validation.Validate(name, stackNameRules...); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidName, name, err)
	}
	return nil
}

// PickColor returns the least-used palette color among existing stacks.
// Ties go to the color that comes first in StackColors.
func PickColor(existing []Stack) string {
	usage := make(map[string]int, len(StackColors))
	for _, s := range existing {
		usage[s.Color]++
	}
	best := StackColors[0]
	for _, c := range StackColors[1:] {
		if usage[c] < usage[best] {
			best = c
		}
	}
	return best
}
