package model

// Viewer is the identity attached to one inbound request.
type Viewer struct {
	id       uint
	signedIn bool
}

// Anonymous returns a viewer without identity.
func Anonymous() Viewer {
	return Viewer{}
}

// SignedIn returns a viewer authenticated as userID.
func SignedIn(userID uint) Viewer {
	return Viewer{id: userID, signedIn: true}
}

// UserID returns the viewer's user id and whether one is present.
func (v Viewer) UserID() (uint, bool) {
	return v.id, v.signedIn
}
