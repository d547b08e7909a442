package main

import "github.com/vjranagit/electrode-tester/internal/cmd"

func main() {
	cmd.Execute()
}
