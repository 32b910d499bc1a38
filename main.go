package main

import (
	"os"

	"guest-messaging/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		os.Exit(1)
	}
}
