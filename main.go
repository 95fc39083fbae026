package main

import "github.com/chrisdamba/salescount/cmd"

func main() {
	cmd.Execute()
}
