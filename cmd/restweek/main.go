package main

import "github.com/example/restweek/cmd"

func main() {
	cmd.Execute()
}
