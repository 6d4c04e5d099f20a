package main

import "github.com/semcache/semcache/cmd"

func main() {
	cmd.Execute()
}
