package main

import (
	"caterpillar/cmd/handlers"
	"caterpillar/internal/logger"
)

func main() {
	logger.Init()
	handlers.Execute()
}
