package main

import "github.com/bryanchriswhite/Silhouette/cmd/silhouette/commands"

func main() {
	commands.Execute()
}
