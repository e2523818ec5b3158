package reconcile

// Classification is the Loop Guard's verdict on an external predicate.
type Classification string

const (
	// ClassAbsent means no decodable predicate is on the bus for the column.
	ClassAbsent Classification = "ABSENT"
	// ClassEcho is this instance's own last write coming back. Safe to ignore.
	ClassEcho Classification = "ECHO"
	// ClassGenuine is a change made elsewhere on the dashboard.
	ClassGenuine Classification = "GENUINE"
	// ClassStale differs from our last write while a write is still in flight.
	ClassStale Classification = "STALE"
	// ClassKnown is a foreign predicate that was already adopted.
	ClassKnown Classification = "KNOWN"
)

// Classify compares an external hash with the last hash this instance wrote.
// An empty lastWritten means nothing was written yet, so any external
// predicate is genuine.
func Classify(externalHash, lastWritten string, inFlight bool) Classification {
	switch {
	case externalHash == "":
		return ClassAbsent
	case lastWritten != "" && externalHash == lastWritten:
		return ClassEcho
	case inFlight:
		return ClassStale
	default:
		return ClassGenuine
	}
}

// Guard is the loop-prevention bookkeeping of one instance.
type Guard struct {
	lastWritten string
	lastAdopted string
}

// Classify classifies an external hash against the guard's memory.
func (g *Guard) Classify(externalHash string, inFlight bool) Classification {
	c := Classify(externalHash, g.lastWritten, inFlight)
	if c == ClassGenuine && externalHash == g.lastAdopted {
		return ClassKnown
	}
	return c
}

// RecordWrite remembers a hash this instance is about to send. Any adopted
// predicate is forgotten so that another widget re-applying it later counts
// as a genuine change again.
func (g *Guard) RecordWrite(hash string) {
	g.lastWritten = hash
	g.lastAdopted = ""
}

// RecordAdopted remembers a foreign predicate taken over as the selection.
func (g *Guard) RecordAdopted(hash string) {
	g.lastAdopted = hash
}

// LastWritten returns the hash of the last write, empty if none.
func (g *Guard) LastWritten() string {
	return g.lastWritten
}
