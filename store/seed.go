package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jmoiron/sqlx"
	"gopkg.in/yaml.v3"

	"github.com/giygas/openfda-api/logging"
)

// Fixtures is the yaml document loaded by the seeder
type Fixtures struct {
	Companies []CompanyFixture `yaml:"companies"`
	Drugs     []DrugFixture    `yaml:"drugs"`
	Reports   []ReportFixture  `yaml:"reports"`
}

type CompanyFixture struct {
	Name      string `yaml:"name"`
	DrugCount int64  `yaml:"drugCount"`
}

type DrugFixture struct {
	CompanyName      string            `yaml:"companyName"`
	DrugName         string            `yaml:"drugName"`
	Products         []ProductFixture  `yaml:"products"`
	Shortages        []ShortageFixture `yaml:"shortages"`
	AdverseReactions []string          `yaml:"adverseReactions"`
}

type ProductFixture struct {
	DosageForm        string                    `yaml:"dosageForm"`
	Route             string                    `yaml:"route"`
	ActiveIngredients []ActiveIngredientFixture `yaml:"activeIngredients"`
}

type ActiveIngredientFixture struct {
	Name     string `yaml:"name"`
	Strength string `yaml:"strength"`
}

type ShortageFixture struct {
	DosageForm         string `yaml:"dosageForm"`
	Description        string `yaml:"description"`
	Presentation       string `yaml:"presentation"`
	InitialPostingDate string `yaml:"initialPostingDate"`
}

// DrugRef names a drug by its natural key
type DrugRef struct {
	CompanyName string `yaml:"companyName"`
	DrugName    string `yaml:"drugName"`
}

type ReportFixture struct {
	ID               int64     `yaml:"id"`
	OccurCountry     string    `yaml:"occurCountry"`
	TransmissionDate string    `yaml:"transmissionDate"`
	PatientAge       *int64    `yaml:"patientAge"`
	PatientGender    string    `yaml:"patientGender"`
	PatientWeight    *float64  `yaml:"patientWeight"`
	Drugs            []DrugRef `yaml:"drugs"`
	AdverseReactions []string  `yaml:"adverseReactions"`
}

// drugCounts counts the distinct drugs each company has across the drug and
// report fixtures
func (f *Fixtures) drugCounts() map[string]int64 {
	seen := make(map[DrugRef]bool)
	counts := make(map[string]int64)
	add := func(ref DrugRef) {
		if !seen[ref] {
			seen[ref] = true
			counts[ref.CompanyName]++
		}
	}
	for _, d := range f.Drugs {
		add(DrugRef{CompanyName: d.CompanyName, DrugName: d.DrugName})
	}
	for _, r := range f.Reports {
		for _, ref := range r.Drugs {
			add(ref)
		}
	}
	return counts
}

// ParseFixtures decodes a fixtures document
func ParseFixtures(r io.Reader) (*Fixtures, error) {
	var f Fixtures
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	return &f, nil
}

// LoadFixtures reads a fixtures file
func LoadFixtures(path string) (*Fixtures, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixtures: %w", err)
	}
	defer file.Close()
	return ParseFixtures(file)
}

// SeedResult counts the rows inserted per table
type SeedResult map[string]int

// Seeder loads fixtures with find-or-create semantics: every row is looked up
// by its natural key and inserted only when absent. Nothing is ever updated.
type Seeder struct {
	db *sqlx.DB
}

func NewSeeder(db *sqlx.DB) *Seeder {
	return &Seeder{db: db}
}

// Seed loads f inside one transaction
func (s *Seeder) Seed(ctx context.Context, f *Fixtures) (SeedResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	run := &seedRun{ctx: ctx, tx: tx, result: make(SeedResult), drugCounts: f.drugCounts()}

	for _, c := range f.Companies {
		if err := run.company(c.Name, c.DrugCount); err != nil {
			return nil, err
		}
	}

	for _, d := range f.Drugs {
		drugID, err := run.drug(d.CompanyName, d.DrugName)
		if err != nil {
			return nil, err
		}
		for _, p := range d.Products {
			if err := run.product(drugID, p); err != nil {
				return nil, err
			}
		}
		for _, sh := range d.Shortages {
			if err := run.shortage(drugID, sh); err != nil {
				return nil, err
			}
		}
		for _, name := range d.AdverseReactions {
			arID, err := run.adverseReaction(name)
			if err != nil {
				return nil, err
			}
			if err := run.link("rel_adverse_reaction_x_drug", "drug_id", drugID, "adverse_reaction_id", arID); err != nil {
				return nil, err
			}
		}
	}

	for _, r := range f.Reports {
		if err := run.report(r); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit seed: %w", err)
	}

	logging.Info("Fixtures seeded", "inserted", map[string]int(run.result))
	return run.result, nil
}

type seedRun struct {
	ctx    context.Context
	tx     *sqlx.Tx
	result SeedResult
	// drug count of companies that are only named by drugs or reports
	drugCounts map[string]int64
}

// findOrCreate returns the id of the row matched by lookup, inserting it when absent
func (r *seedRun) findOrCreate(table, lookup string, lookupArgs []any, insert string, insertArgs []any) (int64, error) {
	var id int64
	err := r.tx.GetContext(r.ctx, &id, r.tx.Rebind(lookup), lookupArgs...)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("lookup %s: %w", table, err)
	}
	if err := r.tx.GetContext(r.ctx, &id, r.tx.Rebind(insert), insertArgs...); err != nil {
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}
	r.result[table]++
	return id, nil
}

func (r *seedRun) exists(q string, args ...any) (bool, error) {
	var n int
	if err := r.tx.GetContext(r.ctx, &n, r.tx.Rebind(q), args...); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *seedRun) company(name string, drugCount int64) error {
	found, err := r.exists("SELECT COUNT(*) FROM company WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("lookup company: %w", err)
	}
	if found {
		return nil
	}
	if _, err := r.tx.ExecContext(r.ctx, r.tx.Rebind("INSERT INTO company (name, drug_count) VALUES (?, ?)"), name, drugCount); err != nil {
		return fmt.Errorf("insert company %q: %w", name, err)
	}
	r.result["company"]++
	return nil
}

func (r *seedRun) drug(companyName, drugName string) (int64, error) {
	if err := r.company(companyName, r.drugCounts[companyName]); err != nil {
		return 0, err
	}
	return r.findOrCreate("drug",
		"SELECT id FROM drug WHERE company_name = ? AND drug_name = ?", []any{companyName, drugName},
		"INSERT INTO drug (company_name, drug_name) VALUES (?, ?) RETURNING id", []any{companyName, drugName},
	)
}

func (r *seedRun) product(drugID int64, p ProductFixture) error {
	// The product row carries the first ingredient; the link table holds all of them
	var aiName, aiStrength string
	if len(p.ActiveIngredients) > 0 {
		aiName, aiStrength = p.ActiveIngredients[0].Name, p.ActiveIngredients[0].Strength
	}

	productID, err := r.findOrCreate("product",
		`SELECT id FROM product WHERE drug_id = ? AND dosage_form = ? AND route = ?
		   AND active_ingredient_name = ? AND active_ingredient_strength = ?`,
		[]any{drugID, p.DosageForm, p.Route, aiName, aiStrength},
		`INSERT INTO product (drug_id, dosage_form, route, active_ingredient_name, active_ingredient_strength)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`,
		[]any{drugID, p.DosageForm, p.Route, aiName, aiStrength},
	)
	if err != nil {
		return err
	}

	for _, ai := range p.ActiveIngredients {
		aiID, err := r.findOrCreate("active_ingredient",
			"SELECT id FROM active_ingredient WHERE name = ? AND strength = ?", []any{ai.Name, ai.Strength},
			"INSERT INTO active_ingredient (name, strength) VALUES (?, ?) RETURNING id", []any{ai.Name, ai.Strength},
		)
		if err != nil {
			return err
		}
		found, err := r.exists("SELECT COUNT(*) FROM product_active_ingredient WHERE product_id = ? AND active_ingredient_id = ?", productID, aiID)
		if err != nil {
			return fmt.Errorf("lookup product_active_ingredient: %w", err)
		}
		if found {
			continue
		}
		if _, err := r.tx.ExecContext(r.ctx,
			r.tx.Rebind("INSERT INTO product_active_ingredient (product_id, active_ingredient_id) VALUES (?, ?)"),
			productID, aiID); err != nil {
			return fmt.Errorf("insert product_active_ingredient: %w", err)
		}
		r.result["product_active_ingredient"]++
	}
	return nil
}

func (r *seedRun) shortage(drugID int64, s ShortageFixture) error {
	_, err := r.findOrCreate("shortages",
		"SELECT id FROM shortages WHERE drug_id = ? AND presentation = ? AND initial_posting_date = ?",
		[]any{drugID, s.Presentation, s.InitialPostingDate},
		`INSERT INTO shortages (drug_id, dosage_form, description, presentation, initial_posting_date)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`,
		[]any{drugID, s.DosageForm, s.Description, s.Presentation, s.InitialPostingDate},
	)
	return err
}

func (r *seedRun) adverseReaction(name string) (int64, error) {
	return r.findOrCreate("adverse_reaction",
		"SELECT id FROM adverse_reaction WHERE name = ?", []any{name},
		"INSERT INTO adverse_reaction (name) VALUES (?) RETURNING id", []any{name},
	)
}

// link inserts a junction row unless the pair already exists
func (r *seedRun) link(table, leftCol string, left int64, rightCol string, right int64) error {
	_, err := r.findOrCreate(table,
		fmt.Sprintf("SELECT id FROM %s WHERE %s = ? AND %s = ?", table, leftCol, rightCol), []any{left, right},
		fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (?, ?) RETURNING id", table, leftCol, rightCol), []any{left, right},
	)
	return err
}

func (r *seedRun) report(rep ReportFixture) error {
	found, err := r.exists("SELECT COUNT(*) FROM report WHERE id = ?", rep.ID)
	if err != nil {
		return fmt.Errorf("lookup report: %w", err)
	}
	if !found {
		if _, err := r.tx.ExecContext(r.ctx, r.tx.Rebind(
			`INSERT INTO report (id, occur_country, transmission_date, patient_age, patient_gender, patient_weight)
			 VALUES (?, ?, ?, ?, ?, ?)`),
			rep.ID, rep.OccurCountry, rep.TransmissionDate, rep.PatientAge, rep.PatientGender, rep.PatientWeight,
		); err != nil {
			return fmt.Errorf("insert report %d: %w", rep.ID, err)
		}
		r.result["report"]++
	}

	var drugIDs []int64
	for _, ref := range rep.Drugs {
		drugID, err := r.drug(ref.CompanyName, ref.DrugName)
		if err != nil {
			return err
		}
		drugIDs = append(drugIDs, drugID)
		if err := r.link("rel_report_x_drug", "report_id", rep.ID, "drug_id", drugID); err != nil {
			return err
		}
	}

	for _, name := range rep.AdverseReactions {
		arID, err := r.adverseReaction(name)
		if err != nil {
			return err
		}
		if err := r.link("rel_adverse_reaction_x_report", "report_id", rep.ID, "adverse_reaction_id", arID); err != nil {
			return err
		}
		for _, drugID := range drugIDs {
			if err := r.link("rel_adverse_reaction_x_drug", "drug_id", drugID, "adverse_reaction_id", arID); err != nil {
				return err
			}
		}
	}
	return nil
}

// wipeOrder deletes children before parents
var wipeOrder = []string{
	"rel_adverse_reaction_x_report",
	"rel_adverse_reaction_x_drug",
	"rel_report_x_drug",
	"product_active_ingredient",
	"product",
	"active_ingredient",
	"shortages",
	"report",
	"adverse_reaction",
	"drug",
	"company",
}

// Wipe deletes every row of every domain table
func Wipe(ctx context.Context, db *sqlx.DB) (map[string]int64, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin wipe: %w", err)
	}
	defer tx.Rollback()

	deleted := make(map[string]int64, len(wipeOrder))
	for _, table := range wipeOrder {
		res, err := tx.ExecContext(ctx, "DELETE FROM "+table)
		if err != nil {
			return nil, fmt.Errorf("wipe %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		deleted[table] = n
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit wipe: %w", err)
	}
	logging.Warn("Database wiped", "deleted", deleted)
	return deleted, nil
}
