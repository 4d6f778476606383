package domain

import "slices"

// Support teams a ticket can be routed to.
const (
	TeamLevel1Support        = "Level 1 Support"
	TeamLevel2Support        = "Level 2 Support"
	TeamTechnicalEngineering = "Technical Engineering"
	TeamProductManagement    = "Product Management"
	TeamBilling              = "Billing Department"
	TeamAccountManagement    = "Account Management"
	TeamSecurity             = "Security Team"
	TeamNetworkOperations    = "Network Operations"
	TeamDevelopment          = "Development Team"
	TeamQualityAssurance     = "Quality Assurance"
)

// DefaultTeam receives anything the router cannot place.
const DefaultTeam = TeamLevel1Support

var teams = []string{
	TeamLevel1Support,
	TeamLevel2Support,
	TeamTechnicalEngineering,
	TeamProductManagement,
	TeamBilling,
	TeamAccountManagement,
	TeamSecurity,
	TeamNetworkOperations,
	TeamDevelopment,
	TeamQualityAssurance,
}

// Teams returns the closed set of routable teams in display order.
func Teams() []string {
	return slices.Clone(teams)
}

// IsTeam reports whether name is one of the routable teams.
func IsTeam(name string) bool {
	return slices.Contains(teams, name)
}

// Routing is the team assignment for a ticket.
type Routing struct {
	PrimaryTeam     string   `json:"primary_team"`
	AdditionalTeams []string `json:"additional_teams"`
}
