package main

import (
	"context"
	"flag"
	"fmt"

	"pulseboard/internal/platform/config"
	"pulseboard/internal/platform/logger"

	"pulseboard/internal/services/pipeline"
	"pulseboard/internal/services/schema"
)

func main() {
	fPrint := flag.Bool("print", false, "print the DDL and exit without connecting")
	flag.Parse()

	if *fPrint {
		fmt.Println(schema.PostgresDDL())
		for _, stmt := range schema.ClickhouseDDL() {
			fmt.Println(stmt + ";")
		}
		return
	}

	ctx := context.Background()
	l := logger.InitFor("pulseboard-migrate")
	st, err := pipeline.OpenStore(ctx, config.New(), "migrate")
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	if err := schema.Apply(ctx, st.PG, st.CH); err != nil {
		l.Fatal().Err(err).Msg("schema apply failed")
	}
	l.Info().Msg("schema applied")
}
