package main

import "github.com/pders01/trace/cmd"

func main() {
	cmd.Execute()
}
