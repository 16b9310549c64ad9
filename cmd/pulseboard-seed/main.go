package main

import (
	"context"
	"flag"
	"os"

	"pulseboard/internal/modkit"
	"pulseboard/internal/platform/config"
	"pulseboard/internal/platform/logger"

	entmod "pulseboard/internal/services/entities/module"
	"pulseboard/internal/services/pipeline"
)

func main() {
	var (
		fOrg  = flag.String("org", "", "organization id (overrides the file's organization_id)")
		fFile = flag.String("file", "", "YAML seed file (- for stdin)")
	)
	flag.Parse()

	l := logger.InitFor("pulseboard-seed")
	if *fFile == "" {
		l.Fatal().Msg("-file is required")
	}

	in := os.Stdin
	if *fFile != "-" {
		f, err := os.Open(*fFile)
		if err != nil {
			l.Fatal().Err(err).Msg("open seed file")
		}
		defer f.Close()
		in = f
	}

	ctx := context.Background()
	root := config.New()
	st, err := pipeline.OpenStore(ctx, root, "seed")
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	// seeding touches postgres only
	ents := entmod.New(modkit.FromStore(*l, root, st, nil))
	seeder := ents.Ports().(entmod.Ports).Seeder

	rep, err := seeder.Seed(ctx, *fOrg, in)
	if err != nil {
		l.Fatal().Err(err).Msg("seed failed")
	}
	l.Info().
		Str("org", rep.OrganizationID).
		Int("mapped", rep.Mapped).
		Int("skipped", rep.Skipped).
		Int("collisions", rep.Collisions).
		Int("deactivated", rep.Deactivated).
		Msg("seed complete")
}
