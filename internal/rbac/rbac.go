package rbac

// Role is a user's global role, fixed at signup.
type Role string

const (
	RoleBuyer       Role = "buyer"
	RoleSeller      Role = "seller"
	RoleSolicitor   Role = "solicitor"
	RoleEstateAgent Role = "estate_agent"
)

// Relation is a user's assignment on a specific property.
type Relation string

const (
	RelBuyer           Relation = "buyer"
	RelSeller          Relation = "seller"
	RelBuyerSolicitor  Relation = "buyer_solicitor"
	RelSellerSolicitor Relation = "seller_solicitor"
	RelEstateAgent     Relation = "estate_agent"
)

// Op identifies a property-scoped operation.
type Op string

const (
	OpReadProperty    Op = "read_property"
	OpUpdateProperty  Op = "update_property"
	OpDeleteProperty  Op = "delete_property"
	OpReadStages      Op = "read_stages"
	OpCreateStage     Op = "create_stage"
	OpUpdateStage     Op = "update_stage"
	OpCompleteStage   Op = "complete_stage"
	OpDeleteStage     Op = "delete_stage"
	OpReorderStages   Op = "reorder_stages"
	OpApproveTimeline Op = "approve_timeline"
	OpUnlockTimeline  Op = "unlock_timeline"
	OpResetStages     Op = "reset_stages"
	OpSendMessage     Op = "send_message"
	OpPendingMessages Op = "pending_messages"
	OpResolveMessage  Op = "resolve_message"
	OpReadMessages    Op = "read_messages"
	OpNotifications   Op = "notifications"
	OpUploadDocument  Op = "upload_document"
	OpReadDocuments   Op = "read_documents"
	OpReviewDocument  Op = "review_document"
	OpExportTimeline  Op = "export_timeline"
)

var anyAssigned = []Relation{RelBuyer, RelSeller, RelBuyerSolicitor, RelSellerSolicitor, RelEstateAgent}
var solicitors = []Relation{RelBuyerSolicitor, RelSellerSolicitor}

// allowed is the single authorization table: for each operation, the property
// relations permitted to perform it. Stage create/update deliberately exclude
// the seller relation, matching the long-standing behavior of the workflow.
var allowed = map[Op][]Relation{
	OpReadProperty:    anyAssigned,
	OpUpdateProperty:  anyAssigned,
	OpDeleteProperty:  {RelEstateAgent},
	OpReadStages:      anyAssigned,
	OpCreateStage:     {RelBuyer, RelBuyerSolicitor, RelSellerSolicitor, RelEstateAgent},
	OpUpdateStage:     {RelBuyer, RelBuyerSolicitor, RelSellerSolicitor, RelEstateAgent},
	OpCompleteStage:   anyAssigned,
	OpDeleteStage:     solicitors,
	OpReorderStages:   solicitors,
	OpApproveTimeline: solicitors,
	OpUnlockTimeline:  solicitors,
	OpResetStages:     anyAssigned,
	OpSendMessage:     {RelBuyer, RelSeller},
	OpPendingMessages: {RelEstateAgent},
	OpResolveMessage:  {RelEstateAgent},
	OpReadMessages:    {RelBuyer, RelSeller, RelEstateAgent},
	OpNotifications:   anyAssigned,
	OpUploadDocument:  anyAssigned,
	OpReadDocuments:   anyAssigned,
	OpReviewDocument:  solicitors,
	OpExportTimeline:  anyAssigned,
}

// Can reports whether any of the caller's relations to the property permit op.
func Can(op Op, rels []Relation) bool {
	perms, ok := allowed[op]
	if !ok {
		return false
	}
	for _, rel := range rels {
		for _, perm := range perms {
			if rel == perm {
				return true
			}
		}
	}
	return false
}

// Normalize maps an arbitrary role string onto a known Role, defaulting to buyer.
func Normalize(role string) Role {
	switch Role(role) {
	case RoleBuyer, RoleSeller, RoleSolicitor, RoleEstateAgent:
		return Role(role)
	default:
		return RoleBuyer
	}
}
