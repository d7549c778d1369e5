package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	appLog "nyumbacal/internal/log"
	"nyumbacal/internal/store"
)

// importRecords handles the import subcommand: it loads a JSON export of
// tenants, maintenance requests and viewings into the configured database.
// Records carrying an id replace the stored record with that id.
func importRecords(args []string) int {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", "./config.yaml", "Path to config file")
	landlord := fs.String("landlord", "", "Landlord id for records that carry none")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: nyumbacal import [OPTIONS] export.json\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	conf, err := loadConfig(*configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", *configPath)
		return 1
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		appLog.Error("open export", err)
		return 1
	}
	defer f.Close()

	recs, err := store.DecodeDocuments(f, conf.Location())
	if err != nil {
		appLog.Error("decode export", err, "file", fs.Arg(0))
		return 1
	}
	if *landlord != "" {
		recs.AssignLandlord(*landlord)
	}

	ctx := context.Background()
	st, err := openStore(ctx, conf.Database)
	if err != nil {
		appLog.Error("open database", err)
		return 1
	}
	defer st.Close()

	if err := st.SaveRecords(ctx, &recs); err != nil {
		appLog.Error("import failed", err)
		return 1
	}
	appLog.Info("import complete",
		"tenants", len(recs.Tenants),
		"maintenance", len(recs.Maintenance),
		"viewings", len(recs.Viewings),
	)
	return 0
}
