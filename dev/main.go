package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"mealassist-backend/internal/fakeapp"
)

const (
	stateDir = "dev/.state"
	email    = "dev@mealassist.local"
	password = "dev"
)

func create(recreate bool, baseUrl string) (string, error) {
	_, err := os.Stat("go.mod")
	if os.IsNotExist(err) {
		return "", fmt.Errorf("the dev environment must be created in the repository root (the same directory as the 'go.mod' file)")
	}

	if recreate {
		err = os.RemoveAll(stateDir)
		if err != nil && !os.IsNotExist(err) {
			return "", err
		}
	}
	err = os.MkdirAll(stateDir, 0777)
	if err != nil && !os.IsExist(err) {
		return "", err
	}

	configPath := filepath.Join(stateDir, "mealassist.json5")
	config := fmt.Sprintf(`{
  // generated by dev/main.go, points at the local fake app
  username: %q,
  password: %q,
  base_url: %q,
  state_dir: %q,
  verbose: true,
}
`, email, password, baseUrl, stateDir)
	err = os.WriteFile(configPath, []byte(config), 0600)
	if err != nil {
		return "", err
	}
	return configPath, nil
}

func main() {
	recreate := flag.Bool("recreate", false, "recreate the dev environment from scratch")
	flag.Parse()

	app := fakeapp.New(email, password)
	defer app.Close()

	configPath, err := create(*recreate, app.URL)
	if err != nil {
		slog.Error("failed to create dev environment", "err", err.Error())
		os.Exit(1)
	}

	slog.Info("dev environment created sucessfully!", "fake_app", app.URL)
	fmt.Printf("try: go run ./cmd/mealassist --config %s add \"milk, eggs and bread\"\n", configPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
}
