package registry

// Entity names exposed through the item parameter
const (
	Shortages                 = "shortages"
	Company                   = "company"
	AdverseReaction           = "adverseReaction"
	Report                    = "report"
	ActiveIngredient          = "activeIngredient"
	Product                   = "product"
	RelAdverseReactionXDrug   = "relAdverseReactionXDrug"
	RelAdverseReactionXReport = "relAdverseReactionXReport"
	RelReportXDrug            = "relReportXDrug"
	Drug                      = "drug"
)

// Default returns the registry of the openFDA drug schema
func Default() *Registry {
	return MustNew(
		Entity{
			Name: Shortages,
			Fields: []Field{
				{"id", Number},
				{"drugId", Number},
				{"dosageForm", Text},
				{"description", Text},
				{"initialPostingDate", Date},
				{"presentation", Text},
			},
			Joins: []Join{
				{Name: "Drug", Target: Drug, Kind: Direct, Relation: "Drug"},
			},
		},
		Entity{
			Name: Company,
			Fields: []Field{
				{"name", Text},
				{"drugCount", Number},
			},
			Joins: []Join{
				{Name: "drug", Target: Drug, Kind: Direct, Relation: "drug"},
			},
		},
		Entity{
			Name: AdverseReaction,
			Fields: []Field{
				{"id", Number},
				{"name", Text},
			},
			Joins: []Join{
				{Name: "drug", Target: Drug, Kind: Ternary, Relation: "drugs", Pointer: "Drug"},
				{Name: "report", Target: Report, Kind: Ternary, Relation: "reports", Pointer: "Report"},
			},
		},
		Entity{
			Name: Report,
			Fields: []Field{
				{"id", Number},
				{"occurCountry", Text},
				{"transmissionDate", Text},
				{"patientAge", Number},
				{"patientGender", Text},
				{"patientWeight", Number},
			},
			Joins: []Join{
				{Name: "drug", Target: Drug, Kind: Ternary, Relation: "drugs", Pointer: "Drug"},
				{Name: "adverseReaction", Target: AdverseReaction, Kind: Ternary, Relation: "adverseReactions", Pointer: "AdverseReaction"},
			},
		},
		Entity{
			Name: ActiveIngredient,
			Fields: []Field{
				{"id", Number},
				{"name", Text},
				{"strength", Text},
			},
			Joins: []Join{
				{Name: "Product", Target: Product, Kind: Direct, Relation: "Product"},
			},
		},
		Entity{
			Name: Product,
			Fields: []Field{
				{"id", Number},
				{"activeIngredientName", Text},
				{"activeIngredientStrength", Text},
				{"dosageForm", Text},
				{"route", Text},
				{"drugId", Number},
			},
			Joins: []Join{
				{Name: "Drug", Target: Drug, Kind: Direct, Relation: "Drug"},
				{Name: "activeIngredient", Target: ActiveIngredient, Kind: Direct, Relation: "ActiveIngredient"},
			},
		},
		Entity{
			Name: RelAdverseReactionXDrug,
			Fields: []Field{
				{"id", Number},
				{"drugId", Number},
				{"adverseReactionId", Number},
			},
			Joins: []Join{
				{Name: "Drug", Target: Drug, Kind: Direct, Relation: "Drug"},
				{Name: "AdverseReaction", Target: AdverseReaction, Kind: Direct, Relation: "AdverseReaction"},
			},
		},
		Entity{
			Name: RelAdverseReactionXReport,
			Fields: []Field{
				{"id", Number},
				{"reportId", Number},
				{"adverseReactionId", Number},
			},
			Joins: []Join{
				{Name: "Report", Target: Report, Kind: Direct, Relation: "Report"},
				{Name: "AdverseReaction", Target: AdverseReaction, Kind: Direct, Relation: "AdverseReaction"},
			},
		},
		Entity{
			Name: RelReportXDrug,
			Fields: []Field{
				{"id", Number},
				{"reportId", Number},
				{"drugId", Number},
			},
			Joins: []Join{
				{Name: "Report", Target: Report, Kind: Direct, Relation: "Report"},
				{Name: "Drug", Target: Drug, Kind: Direct, Relation: "Drug"},
			},
		},
		Entity{
			Name: Drug,
			Fields: []Field{
				{"id", Number},
				{"companyName", Text},
				{"drugName", Text},
			},
			Joins: []Join{
				{Name: "Company", Target: Company, Kind: Direct, Relation: "Company"},
				{Name: "Product", Target: Product, Kind: Direct, Relation: "Product"},
				{Name: "shortages", Target: Shortages, Kind: Direct, Relation: "shortages"},
				{Name: "adverseReaction", Target: AdverseReaction, Kind: Ternary, Relation: "adverseReactions", Pointer: "AdverseReaction"},
				{Name: "report", Target: Report, Kind: Ternary, Relation: "reports", Pointer: "Report"},
			},
		},
	)
}
