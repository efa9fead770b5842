// Command sqlite-read prints a summary of a SQLite database file:
// its tables, their row counts, and a handful of sample rows from
// each. It takes a single path argument and exits non-zero with a
// message on open failure (spec §6 "CLI surface").
package main

import (
	"fmt"
	"os"

	sqlitereader "github.com/abelmoreno/sqlitereader"
)

const sampleRowCount = 5

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: sqlite-read <database-file>")
		os.Exit(1)
	}

	db, err := sqlitereader.Open(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "sqlite-read: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	tables := db.Tables()
	fmt.Printf("%d table(s)\n", len(tables))

	for _, name := range tables {
		count, err := db.CountTableRows(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sqlite-read: counting %s: %v\n", name, err)
			continue
		}
		fmt.Printf("\n%s (%d rows)\n", name, count)

		rows, err := db.ReadTableLimited(name, sampleRowCount)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sqlite-read: reading %s: %v\n", name, err)
			continue
		}
		for _, row := range rows {
			printRow(row)
		}
	}
}

func printRow(row sqlitereader.Row) {
	for i, col := range row.Columns {
		if i > 0 {
			fmt.Print(", ")
		}
		fmt.Printf("%s=%s", col, row.Values[i].String())
	}
	fmt.Println()
}
