package main

import (
	"context"

	"filmcalendar-backend/cmd/filmcal-cli/commands"
	"filmcalendar-backend/lib/telemetry"
)

func main() {
	telemetry.SetupFromEnv(context.Background(), "filmcal-cli")
	telemetry.InitSlog(true)
	commands.ExecuteContext(context.Background())
}
