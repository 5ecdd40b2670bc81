// Command bib keeps bibliographic papers in named stacks.
package main

import "github.com/mesh-intelligence/bib/internal/cli"

func main() {
	cli.Execute()
}
