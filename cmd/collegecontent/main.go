package main

import (
	"collegecontent/cmd/handlers"
	"collegecontent/internal/logger"
)

func main() {
	logger.Init() // Initialize the logger
	handlers.Execute()
}
