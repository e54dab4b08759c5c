package command

import "github.com/Ruadhri17/thin-edge.io/pkg/topics"

// StatusPayload holds the fields shared by every command payload.
type StatusPayload struct {
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// CommandStatus returns the status.
func (p StatusPayload) CommandStatus() Status { return p.Status }

// CommandReason returns the failure reason, if any.
func (p StatusPayload) CommandReason() string { return p.Reason }

// SetStatus updates the status and reason.
func (p *StatusPayload) SetStatus(status Status, reason string) {
	p.Status = status
	p.Reason = reason
}

// Payload is implemented by every command payload type.
type Payload interface {
	Operation() topics.OperationKind
	CommandStatus() Status
	CommandReason() string
}

// RestartPayload requests a device restart.
type RestartPayload struct {
	StatusPayload
}

// Operation returns restart.
func (RestartPayload) Operation() topics.OperationKind { return topics.OperationRestart }

// SoftwareModule describes an installed or requested software module.
type SoftwareModule struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	URL     string `json:"url,omitempty"`
	Action  string `json:"action,omitempty"`
}

// Module actions in a software update request.
const (
	ActionInstall = "install"
	ActionRemove  = "remove"
)

// SoftwareModuleList groups modules by software type (apt, docker, ...).
type SoftwareModuleList struct {
	Type    string           `json:"type"`
	Modules []SoftwareModule `json:"modules"`
}

// SoftwareListPayload requests or reports the installed software.
type SoftwareListPayload struct {
	StatusPayload
	CurrentSoftwareList []SoftwareModuleList `json:"currentSoftwareList,omitempty"`
}

// Operation returns software_list.
func (SoftwareListPayload) Operation() topics.OperationKind { return topics.OperationSoftwareList }

// SoftwareUpdatePayload requests modules to be installed or removed.
type SoftwareUpdatePayload struct {
	StatusPayload
	UpdateList []SoftwareModuleList `json:"updateList,omitempty"`
}

// Operation returns software_update.
func (SoftwareUpdatePayload) Operation() topics.OperationKind {
	return topics.OperationSoftwareUpdate
}
