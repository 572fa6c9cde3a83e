package main

import (
	"log"
	"os"

	"github.com/ondegooltd/fortisel-api/cmd/fortisel-api/app"
	"github.com/ondegooltd/fortisel-api/configs"
)

func main() {
	env := os.Getenv("APP_ENV") // dev | staging | prod
	if env == "" {
		env = "dev"
	}

	cfg, err := configs.Load("configs", env)
	if err != nil {
		log.Fatal(err)
	}

	if err := app.Run(cfg, env); err != nil {
		log.Fatal(err)
	}
}
