package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"forecast-combiner/internal/storage"

	"github.com/rs/zerolog/log"
	bolt "go.etcd.io/bbolt"
)

func main() {
	var (
		dbPath     = flag.String("db", "data/combiner.db", "Path to BoltDB database")
		outputPath = flag.String("output", "observations.json", "Output file, one JSON observation per line")
		series     = flag.String("series", "", "Series to export (empty for all)")
		complete   = flag.Bool("complete", false, "Only export steps whose true value is known")
		bucket     = flag.String("bucket", "observations", "BoltDB bucket name")
	)
	flag.Parse()

	log.Info().Str("db", *dbPath).Str("output", *outputPath).Msg("Exporting observations")

	db, err := bolt.Open(*dbPath, 0600, &bolt.Options{ReadOnly: true})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	var records []storage.Observation
	counts := make(map[string]int)

	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(*bucket))
		if b == nil {
			return fmt.Errorf("bucket %s not found", *bucket)
		}

		c := b.Cursor()
		prefix := []byte(*series + "_")
		k, v := c.First()
		if *series != "" {
			k, v = c.Seek(prefix)
		}
		for ; k != nil; k, v = c.Next() {
			if *series != "" && !strings.HasPrefix(string(k), string(prefix)) {
				break
			}

			var o storage.Observation
			if err := json.Unmarshal(v, &o); err != nil {
				log.Warn().Err(err).Str("key", string(k)).Msg("Skipping malformed observation")
				continue
			}
			// keys of longer series names share the prefix
			if *series != "" && o.Series != *series {
				continue
			}
			if *complete && !o.HasActual() {
				continue
			}
			records = append(records, o)
			counts[o.Series]++
		}
		return nil
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read from database")
	}

	if len(records) == 0 {
		log.Warn().Msg("No observations found matching criteria")
	}

	outputFile, err := os.Create(*outputPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create output file")
	}
	defer outputFile.Close()

	encoder := json.NewEncoder(outputFile)
	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			log.Fatal().Err(err).Msg("Failed to write JSON record")
		}
	}

	log.Info().Int("records", len(records)).Str("output", *outputPath).Msg("Export finished")
	for name, n := range counts {
		fmt.Printf("  %s: %d steps\n", name, n)
	}
}
