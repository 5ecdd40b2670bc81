package sqlite

// Schema DDL. Every statement is idempotent so an interrupted bootstrap can
// be rerun.
const (
	createPapers = `CREATE TABLE IF NOT EXISTS papers (
    paper_id TEXT PRIMARY KEY,
    fields TEXT NOT NULL DEFAULT '{}',
    notes TEXT NOT NULL DEFAULT '',
    pdf_location TEXT,
    created_at TEXT NOT NULL,
    last_accessed TEXT NOT NULL
);`

	createStacks = `CREATE TABLE IF NOT EXISTS stacks (
    stack_id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    color TEXT NOT NULL,
    created_at TEXT NOT NULL
);`

	createMemberships = `CREATE TABLE IF NOT EXISTS memberships (
    stack_id TEXT NOT NULL,
    paper_id TEXT NOT NULL,
    added_at TEXT NOT NULL,
    PRIMARY KEY (stack_id, paper_id),
    FOREIGN KEY (stack_id) REFERENCES stacks(stack_id) ON DELETE CASCADE,
    FOREIGN KEY (paper_id) REFERENCES papers(paper_id) ON DELETE RESTRICT
);`

	createActiveStack = `CREATE TABLE IF NOT EXISTS active_stack (
    singleton INTEGER PRIMARY KEY CHECK (singleton = 1),
    name TEXT NOT NULL
);`
)

// Index DDL.
const (
	idxMembershipsPaper = `CREATE INDEX IF NOT EXISTS idx_memberships_paper ON memberships(paper_id);`
	idxPapersCreated    = `CREATE INDEX IF NOT EXISTS idx_papers_created ON papers(created_at);`
)

// schemaDDL lists every statement in dependency order.
var schemaDDL = []string{
	createPapers,
	createStacks,
	createMemberships,
	createActiveStack,
	idxMembershipsPaper,
	idxPapersCreated,
}
