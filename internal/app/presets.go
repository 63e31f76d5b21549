package app

import (
	"conveyo/api/internal/store"
	"conveyo/api/internal/util"
)

type stagePreset struct {
	Name            string
	ResponsibleRole string
	Description     string
}

// presetStages is the standard English conveyancing timeline materialized for
// every new property, in order.
var presetStages = []stagePreset{
	{"Offer Accepted", "estate_agent", "Initial acceptance of offer by the estate agent"},
	{"Buyer ID Verification", "buyer", "Buyer provides proof of ID and address"},
	{"Seller ID Verification", "seller", "Seller provides proof of ID and address"},
	{"Draft Contract Issued", "seller_solicitor", "Seller's solicitor prepares and issues draft contract"},
	{"Searches Ordered", "buyer_solicitor", "Buyer's solicitor orders property searches"},
	{"Searches Received & Reviewed", "buyer_solicitor", "Buyer's solicitor reviews search results"},
	{"Survey Booked", "buyer", "Buyer arranges property survey"},
	{"Survey Completed", "surveyor", "Surveyor completes property survey"},
	{"Mortgage Offer Received", "buyer", "Buyer receives mortgage offer from lender"},
	{"Proof of Funds Verified", "buyer", "Buyer provides proof of funds"},
	{"Enquiries Raised by Buyer's Solicitor", "buyer_solicitor", "Buyer's solicitor raises enquiries"},
	{"Enquiries Answered by Seller's Solicitor", "seller_solicitor", "Seller's solicitor answers enquiries"},
	{"Final Contract Approved", "both_solicitors", "Both solicitors approve final contract"},
	{"Contracts Signed by Buyer & Seller", "both_parties", "Buyer and seller sign contracts"},
	{"Completion Date Agreed", "both_solicitors", "Both solicitors agree on completion date"},
	{"Deposit Paid by Buyer", "buyer", "Buyer pays deposit to solicitor"},
	{"Contracts Exchanged", "both_solicitors", "Solicitors exchange contracts"},
	{"Final Checks & Funds Requested", "buyer_solicitor", "Buyer's solicitor requests final funds"},
	{"Completion Day", "buyer_solicitor", "Property ownership transfers to buyer"},
	{"Keys Released & Registration", "estate_agent", "Keys released and property registered"},
}

// explanationRoles are the roles the stage-info endpoint serves.
var explanationRoles = []string{"buyer", "seller", "solicitor", "estate_agent"}

func placeholderExplanation(stage string) string {
	return "Explain the " + stage
}

// presetStageRows materializes the catalog for one property: positions 0..N-1,
// all pending.
func presetStageRows(propertyID int64) []store.Stage {
	stages := make([]store.Stage, 0, len(presetStages))
	for i, preset := range presetStages {
		stages = append(stages, store.Stage{
			ID:              util.NewID(),
			PropertyID:      propertyID,
			Name:            preset.Name,
			Status:          "pending",
			Description:     preset.Description,
			ResponsibleRole: preset.ResponsibleRole,
			SortOrder:       i,
		})
	}
	return stages
}

func presetExplanationSeeds() []store.StageExplanation {
	items := make([]store.StageExplanation, 0, len(presetStages)*len(explanationRoles))
	for _, preset := range presetStages {
		items = append(items, explanationSeeds(preset.Name)...)
	}
	return items
}

func explanationSeeds(stage string) []store.StageExplanation {
	items := make([]store.StageExplanation, 0, len(explanationRoles))
	for _, role := range explanationRoles {
		items = append(items, store.StageExplanation{
			ID:          util.NewID(),
			Stage:       stage,
			Role:        role,
			Explanation: placeholderExplanation(stage),
		})
	}
	return items
}
