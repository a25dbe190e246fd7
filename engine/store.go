package engine

import "github.com/caarlos0/smsalarm/smsproto"

// Store is the durable record store written by the engine. Writes must
// complete before a configuration step advances; each Put replaces the
// slots it names, so re-running a step is idempotent. The panel reports
// every slot of a block, disabled ones included, which is what makes
// slot-level replacement equivalent to a full replace of the block.
type Store interface {
	PutPanelInfo(version string, main bool, flags smsproto.Permissions) error
	PutZones(zones []smsproto.ZoneRecord) error
	PutScenarios(scenarios []smsproto.ScenarioRecord) error
	PutUsers(users []smsproto.UserRecord) error
	PutStatus(status smsproto.Status, scenario string) error
	MarkConfigured(configured bool) error
}
