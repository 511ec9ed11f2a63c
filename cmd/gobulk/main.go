package main

import "github.com/dbsmedya/gobulk/cmd/gobulk/cmd"

func main() {
	cmd.Execute()
}
