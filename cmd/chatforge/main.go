package main

import (
	"github.com/entrepeneur4lyf/chatforge/cmd/chatforge/cmd"
)

func main() {
	cmd.Execute()
}
