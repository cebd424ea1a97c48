package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"marketplace-core/internal/config"
	"marketplace-core/internal/db"
	"marketplace-core/internal/importer"
	"marketplace-core/internal/repository/product"
	"marketplace-core/internal/repository/store"
)

func main() {
	var (
		filePath string
		storeID  string
	)
	flag.StringVar(&filePath, "file", "", "Path to product CSV")
	flag.StringVar(&storeID, "store", "", "ID of the store to import into")
	flag.Parse()

	if filePath == "" || storeID == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[importer] ", log.LstdFlags|log.LUTC|log.Lshortfile)
	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	st, err := store.NewPostgres(pool, logger).GetByID(ctx, storeID)
	if err != nil {
		logger.Fatalf("load store %q: %v", storeID, err)
	}

	f, err := os.Open(filePath)
	if err != nil {
		logger.Fatalf("open file: %v", err)
	}
	defer f.Close()

	imp := importer.NewCSVImporter(f, product.NewPostgres(pool, logger), st.ID, st.Currency)

	start := time.Now()
	count, err := imp.Run(ctx)
	if err != nil {
		logger.Fatalf("import failed after %d products: %v", count, err)
	}

	fmt.Printf("Imported %d products into store %s in %s\n", count, st.Slug, time.Since(start).Truncate(time.Millisecond))
}
