package mcp

// StartInput defines the input for the alliance_start tool.
type StartInput struct {
	NumRounds       int    `json:"num_rounds" jsonschema:"number of rounds to play (1-50)"`
	InformationMode string `json:"information_mode" jsonschema:"asymmetric (each party sees only its own payoffs) or symmetric"`
	AMStrategy      string `json:"am_strategy" jsonschema:"strategy for Autonomous Motors: cooperative, competitive, tit-for-tat, adaptive or neutral"`
	MCStrategy      string `json:"mc_strategy" jsonschema:"strategy for Motherboard Chips: cooperative, competitive, tit-for-tat, adaptive or neutral"`
}

// SimulationInput selects a simulation.
type SimulationInput struct {
	SimulationID string `json:"simulation_id" jsonschema:"simulation id returned by alliance_start"`
}

// ListInput defines the input for the alliance_list tool.
type ListInput struct{}

// ChatInput defines the input for the alliance_chat tool.
type ChatInput struct {
	SimulationID string `json:"simulation_id" jsonschema:"simulation id returned by alliance_start"`
	Agent        string `json:"agent" jsonschema:"party to talk to: am or mc"`
	Message      string `json:"message" jsonschema:"message for the party"`
}
