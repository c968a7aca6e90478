package main

import (
	"context"

	"mealassist-backend/cmd/mealassist/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
