// Package seeder generates realistic sample source files for demos and for
// exercising mapping configurations against data that looks like production.
package seeder

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

// Format selects which source shape to generate.
const (
	FormatCases   = "cases"
	FormatPartner = "partner"
)

var caseStatuses = []string{"new", "open", "in progress", "settled", "closed", "rejected"}

// Options controls generation.
type Options struct {
	Format string
	Count  int
	Seed   int64
	// EmptyRate injects missing values so empty-percentage detection and
	// allow-empty handling get exercised (0..1).
	EmptyRate float64
	Delimiter rune
}

func (o Options) delimiter() rune {
	if o.Delimiter == 0 {
		return ','
	}
	return o.Delimiter
}

// WriteCSV generates a sample CSV in the requested format.
func WriteCSV(w io.Writer, opts Options) error {
	if opts.Count <= 0 {
		opts.Count = 50
	}
	faker := gofakeit.New(opts.Seed)
	rng := rand.New(rand.NewSource(opts.Seed))

	cw := csv.NewWriter(w)
	cw.Comma = opts.delimiter()

	switch opts.Format {
	case FormatPartner:
		return writePartner(cw, faker, rng, opts)
	case FormatCases, "":
		return writeCases(cw, faker, rng, opts)
	default:
		return fmt.Errorf("unknown seed format %q", opts.Format)
	}
}

func writeCases(cw *csv.Writer, faker *gofakeit.Faker, rng *rand.Rand, opts Options) error {
	header := []string{
		"Case ID", "Case Number", "Title", "Status", "Opened At",
		"First Name", "Last Name", "Email", "Phone", "Amount",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for i := 0; i < opts.Count; i++ {
		opened := faker.DateRange(time.Now().AddDate(-2, 0, 0), time.Now())
		row := []string{
			fmt.Sprintf("CASE-%06d", i+1),
			fmt.Sprintf("CN-%d-%04d", opened.Year(), rng.Intn(10000)),
			"Claim against " + faker.Company(),
			caseStatuses[rng.Intn(len(caseStatuses))],
			opened.Format("2006-01-02"),
			faker.FirstName(),
			faker.LastName(),
			faker.Email(),
			faker.Phone(),
			fmt.Sprintf("%.2f", faker.Price(100, 50000)),
		}
		blank(row, rng, opts.EmptyRate, 5) // keep identity columns populated
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writePartner(cw *csv.Writer, faker *gofakeit.Faker, rng *rand.Rand, opts Options) error {
	header := []string{
		"ID", "Lawyer Case ID", "Status", "User_First_Name", "User_Last_Name",
		"User_Email", "User_Phone", "debtor_name", "claim_damages", "created",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for i := 0; i < opts.Count; i++ {
		created := faker.DateRange(time.Now().AddDate(-1, 0, 0), time.Now())
		row := []string{
			fmt.Sprintf("%d", 100000+i),
			fmt.Sprintf("%s-%d-%03d", prefix(faker), created.Year(), i+1),
			caseStatuses[rng.Intn(len(caseStatuses))],
			faker.FirstName(),
			faker.LastName(),
			faker.Email(),
			faker.Phone(),
			faker.Company(),
			fmt.Sprintf("%.2f", faker.Price(500, 20000)),
			created.Format("2006-01-02 15:04:05"),
		}
		blank(row, rng, opts.EmptyRate, 5)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// prefix builds a 2-4 uppercase letter case prefix.
func prefix(faker *gofakeit.Faker) string {
	n := 2 + faker.Number(0, 2)
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('A' + faker.Number(0, 25))
	}
	return string(b)
}

// blank empties random non-identity columns at the given rate.
func blank(row []string, rng *rand.Rand, rate float64, firstOptional int) {
	if rate <= 0 {
		return
	}
	for i := firstOptional; i < len(row); i++ {
		if rng.Float64() < rate {
			row[i] = ""
		}
	}
}
