package main

import "github.com/theirongolddev/roundup/cmd"

func main() {
	cmd.Execute()
}
