// Command splitexport splits a raw JSON-lines broker export into one file
// per topic, keeping only the documents inside a time window. For every
// topic it writes the documents as a JSON array and the readings as a
// data/body CSV ready to be listed in an experiment manifest.
//
// Usage:
//
//	go run ./cmd/splitexport \
//	  -in simulacao1/telhado1/json/Telhado1.json \
//	  -out simulacao1/telhado1 \
//	  -from "2024-05-10 14:00" -to "2024-05-10 16:30"
package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/runoff-etl-service/internal/adapter/brokerexport"
	"github.com/couchcryptid/runoff-etl-service/internal/adapter/csvfile"
)

const windowLayout = "2006-01-02 15:04"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	in := flag.String("in", "", "JSON-lines broker export")
	out := flag.String("out", "", "output directory")
	from := flag.String("from", "", "window start, "+windowLayout)
	to := flag.String("to", "", "window end, "+windowLayout)
	zone := flag.String("zone", "America/Noronha", "time zone of -from and -to")
	recordZone := flag.String("record-zone", "UTC", "time zone of the H:MM timestamps written to CSV")
	flag.Parse()

	if *in == "" || *out == "" || *from == "" || *to == "" {
		flag.Usage()
		return errors.New("missing required flags: -in, -out, -from, -to")
	}

	windowLoc, err := time.LoadLocation(*zone)
	if err != nil {
		return fmt.Errorf("zone: %w", err)
	}
	recordLoc, err := time.LoadLocation(*recordZone)
	if err != nil {
		return fmt.Errorf("record-zone: %w", err)
	}
	start, err := time.ParseInLocation(windowLayout, *from, windowLoc)
	if err != nil {
		return fmt.Errorf("from: %w", err)
	}
	end, err := time.ParseInLocation(windowLayout, *to, windowLoc)
	if err != nil {
		return fmt.Errorf("to: %w", err)
	}
	if end.Before(start) {
		return fmt.Errorf("window end %s is before start %s", end, start)
	}

	f, err := os.Open(*in)
	if err != nil {
		return err
	}
	msgs, err := brokerexport.ReadLines(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("read %s: %w", *in, err)
	}
	log.Printf("read %d documents from %s", len(msgs), *in)
	log.Printf("window %s .. %s", start.Format(time.RFC3339), end.Format(time.RFC3339))

	groups := brokerexport.Partition(msgs, start, end)
	if len(groups) == 0 {
		log.Printf("no documents inside the window")
		return nil
	}

	for _, g := range groups {
		if err := writeGroup(*out, g, recordLoc); err != nil {
			return fmt.Errorf("topic %q: %w", g.Topic, err)
		}
	}
	return nil
}

func writeGroup(dir string, g brokerexport.Group, loc *time.Location) error {
	stem := brokerexport.TopicFileName(g.Topic)

	var js bytes.Buffer
	if err := brokerexport.WriteArray(&js, g.Messages); err != nil {
		return err
	}
	jsonPath := filepath.Join(dir, "json", stem+".json")
	if err := writeFile(jsonPath, js.Bytes()); err != nil {
		return err
	}

	var csvBuf bytes.Buffer
	records := brokerexport.ToRawRecords(g.Messages, loc)
	if err := csvfile.WriteRawRecords(&csvBuf, records, csvfile.Columns{Timestamp: "data", Value: "body"}); err != nil {
		return err
	}
	csvPath := filepath.Join(dir, "csv", stem+".csv")
	if err := writeFile(csvPath, csvBuf.Bytes()); err != nil {
		return err
	}

	log.Printf("%s: %d documents -> %s, %s", g.Topic, len(g.Messages), jsonPath, csvPath)
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
