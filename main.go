package main

import "github.com/inovacc/subbot/cmd"

func main() {
	cmd.Execute()
}
