// Command kbmerge merges two tabular Knowledge Bases, deduplicating each
// one internally and matching records across them.
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
