package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evcraddock/viewing-scheduler/internal/agent"
	"github.com/evcraddock/viewing-scheduler/internal/db"
	"github.com/evcraddock/viewing-scheduler/internal/geotime"
	"github.com/evcraddock/viewing-scheduler/internal/property"
	"github.com/evcraddock/viewing-scheduler/internal/tenant"
)

type demoProperty struct {
	name     string
	postcode string
	agent    int // index into demoAgents
}

var demoAgents = []struct{ name, email string }{
	{"Alex Morgan", "alex@agency.example"},
	{"Beth Okafor", "beth@agency.example"},
}

var demoProperties = []demoProperty{
	{"Spacious Flat near Paddington Station", "W2 4DX", 0},
	{"Victorian House in Notting Hill", "W11 2BQ", 0},
	{"Bright 1-Bed Flat in Soho", "W1D 4HT", 0},
	{"Mayfair Mansion Flat", "W1K 6TF", 0},
	{"Bayswater Garden Studio", "W2 2PF", 0},
	{"Loft Apartment in Shoreditch", "E1 6AN", 1},
	{"Modern Penthouse in Canary Wharf", "E14 5AB", 1},
	{"City Apartment near Bank", "EC2A 3AR", 1},
	{"Islington Townhouse", "N1 9GU", 1},
	{"Camden Maisonette", "NW1 7AB", 1},
	{"Clapham Terrace", "SW4 0LG", 0},
	{"Greenwich Riverside Flat", "SE10 9RT", 1},
}

var demoTenants = []tenant.Tenant{
	{Name: "Sarah Jones", Email: "sarah@example.com"},
	{Name: "Tom Price", Email: "tom@example.com"},
	{Name: "Priya Shah", Phone: "07700 900123", TravelTolerance: intPtr(25)},
}

func intPtr(v int) *int { return &v }

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo agents, tenants, properties and postcodes",
		Long:  "Write the London postcode table and, when the database has no agents yet, demo agents, tenants and properties.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServerConfig()
			if err != nil {
				return err
			}
			database, err := openDB(cfg)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer closeDB(database)

			res, err := seed(database)
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(res)
			}
			if res.Skipped {
				fmt.Printf("Postcodes: %d (demo data already present)\n", res.Postcodes)
				return nil
			}
			fmt.Printf("Seeded %d agents, %d tenants, %d properties and %d postcodes.\n",
				res.Agents, res.Tenants, res.Properties, res.Postcodes)
			return nil
		},
	}
}

// seedResult counts what seed wrote.
type seedResult struct {
	Postcodes  int  `json:"postcodes"`
	Agents     int  `json:"agents"`
	Tenants    int  `json:"tenants"`
	Properties int  `json:"properties"`
	Skipped    bool `json:"skipped"`
}

// seed writes the default postcode table and, on an empty database, the
// demo records. Running it twice never duplicates records.
func seed(database *db.DB) (*seedResult, error) {
	coords := geotime.DefaultCoords()
	if err := property.NewCoordRepository(database).UpsertAll(coords); err != nil {
		return nil, fmt.Errorf("seeding postcodes: %w", err)
	}
	res := &seedResult{Postcodes: len(coords)}

	agents := agent.NewRepository(database)
	existing, err := agents.List()
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		res.Skipped = true
		return res, nil
	}

	agentIDs := make([]int64, len(demoAgents))
	for i, a := range demoAgents {
		saved, err := agents.Create(a.name, a.email)
		if err != nil {
			return nil, err
		}
		agentIDs[i] = saved.ID
		res.Agents++
	}

	tenants := tenant.NewRepository(database)
	for i := range demoTenants {
		if _, err := tenants.Create(&demoTenants[i]); err != nil {
			return nil, err
		}
		res.Tenants++
	}

	props := property.NewRepository(database)
	for _, p := range demoProperties {
		if _, err := props.Insert(&property.Property{Name: p.name, Postcode: p.postcode, AgentID: agentIDs[p.agent]}); err != nil {
			return nil, err
		}
		res.Properties++
	}

	return res, nil
}
