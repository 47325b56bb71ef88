package main

import "github.com/smart-classroom/presence/cmd"

func main() {
	cmd.Execute()
}
