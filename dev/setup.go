package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"filmcalendar-backend/services/filmcal/store/db"

	_ "modernc.org/sqlite"
)

func create(recreate bool) error {
	_, err := os.Stat("go.mod")
	if os.IsNotExist(err) {
		return fmt.Errorf("the dev environment must be created in the repository root (the same directory as the 'go.mod' file)")
	}

	if recreate {
		err = os.RemoveAll("dev/.state")
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	err = os.MkdirAll("dev/.state", 0777)
	if err != nil && !os.IsExist(err) {
		return err
	}

	err = createDb("dev/.state/results.db", db.Schema)
	if err != nil {
		return err
	}
	err = createDb("dev/.state/website.db", db.UploadSchema)
	if err != nil {
		return err
	}

	printConfigLocations()
	return nil
}

func createDb(path, schema string) error {
	_, err := os.Stat(path)
	if err == nil {
		fmt.Println("database already created at", path)
		return nil
	}

	fmt.Println("creating database at", path)
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer database.Close()
	_, err = database.Exec(schema)
	return err
}

func printConfigLocations() {
	slog.Info(
		"point the cli/daemon at the dev state with a config.json5 in the repository root",
		"example", `{ page_cache: "dev/.state/page_cache", upload: { file: "dev/.state/website.db" } }`,
	)
}
