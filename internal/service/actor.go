package service

import "procurement-service/internal/models"

// Actor is the authenticated caller of a service operation
type Actor struct {
	ID       int64
	Role     models.Role
	BranchID int64
}

// IsManager reports whether the actor is a procurement manager
func (a Actor) IsManager() bool {
	return a.Role == models.RoleProcurementManager
}

// CanAccessBranch reports whether the actor may act on records of branchID.
// Managers span every branch; custodians are confined to their own.
func (a Actor) CanAccessBranch(branchID int64) bool {
	return a.IsManager() || a.BranchID == branchID
}

// AuthorizeTransition checks the role gate for moving a request to target.
// Callers enforce this before invoking LifecycleService.Transition.
func AuthorizeTransition(actor Actor, req *models.PurchaseRequest, target models.RequestStatus) error {
	switch target {
	case models.RequestStatusApproved, models.RequestStatusRejected, models.RequestStatusRevised:
		if !actor.IsManager() {
			return &ForbiddenError{Role: actor.Role, Action: "mark a request " + string(target)}
		}
	case models.RequestStatusPending:
		if actor.Role != models.RoleCustodian || actor.ID != req.RequesterID {
			return &ForbiddenError{Role: actor.Role, Action: "resubmit another user's request"}
		}
	default:
		return &ForbiddenError{Role: actor.Role, Action: "set status " + string(target)}
	}
	return authorizeBranch(actor, req.BranchID)
}

// AuthorizeRevise allows the requesting custodian or any manager to revise
func AuthorizeRevise(actor Actor, req *models.PurchaseRequest) error {
	if actor.IsManager() {
		return nil
	}
	if actor.Role == models.RoleCustodian && actor.ID == req.RequesterID {
		return authorizeBranch(actor, req.BranchID)
	}
	return &ForbiddenError{Role: actor.Role, Action: "revise another user's request"}
}

// AuthorizeView allows managers everywhere and custodians within their branch.
// Follow-ups share this gate.
func AuthorizeView(actor Actor, req *models.PurchaseRequest) error {
	if !actor.Role.Valid() {
		return &ForbiddenError{Role: actor.Role, Action: "access requests"}
	}
	return authorizeBranch(actor, req.BranchID)
}

func authorizeBranch(actor Actor, branchID int64) error {
	if !actor.CanAccessBranch(branchID) {
		return &ForbiddenError{Role: actor.Role, Action: "act on another branch"}
	}
	return nil
}

// authorizeItemWrite confines inventory changes to custodians of the item's branch
func authorizeItemWrite(actor Actor, branchID int64) error {
	if actor.Role != models.RoleCustodian {
		return &ForbiddenError{Role: actor.Role, Action: "change inventory"}
	}
	return authorizeBranch(actor, branchID)
}
