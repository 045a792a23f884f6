package main

import (
	"context"
	"log/slog"

	"filmcalendar-backend/lib/restyutil"
	"filmcalendar-backend/lib/serviceutil"
	"filmcalendar-backend/lib/telemetry"
)

func InitTelemetry(ctx context.Context, verbose bool) {
	telemetry.InitSlog(verbose)

	if verbose {
		slog.DebugContext(ctx, "verbose logging enabled")
	}

	t, err := telemetry.SetupFromEnv(ctx, "filmcald")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	go func() {
		<-ctx.Done()
		t.Shutdown(context.Background())
	}()
	telemetry.InstrumentPerfStats(ctx)
}

// request/response dumps only exist in verbose mode, the instrumented
// clients skip them on a nil output.
func restyOutput(verbose bool, dir string) restyutil.InstrumentOutput {
	if !verbose {
		return nil
	}
	return restyutil.NewFilesystemOutput(dir)
}
