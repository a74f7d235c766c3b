package ws

// closedForTest reports whether the lifecycle has fully transitioned.
func (a *Adapter) closedForTest() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state == stateClosed
}
