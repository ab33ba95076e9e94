// Public domain.

package main

import "github.com/chapinalc/New-NewLinker/internal/lkprog"

func main() {
	lkprog.Main()
}
