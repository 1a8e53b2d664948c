package txn

import "go.mongodb.org/mongo-driver/v2/bson"

// bsonCheckpoint is the wire shape a Strawman checkpoint round-trips
// through. It mirrors the teacher's checkpoint_serializer.go pattern of
// deep-copying row state via a full marshal/unmarshal cycle rather than a
// structure-sharing copy, trading CPU for the guarantee that later
// mutation of the live cursor can never alias the snapshot.
type bsonCheckpoint struct {
	PC int `bson:"pc"`
}

// strawmanRoundTrip deep-copies a checkpoint by marshaling it to BSON and
// back. For a plain int cursor this is overkill in isolation, but it keeps
// faith with the backend's defining cost characteristic (it is the only
// backend that pays a full serialization round trip per checkpoint) and
// is the extension point a richer cursor (e.g. carrying call-stack state)
// would hang its deep copy off of.
func strawmanRoundTrip(cp checkpoint) checkpoint {
	wire := bsonCheckpoint{PC: cp.pc}
	raw, err := bson.Marshal(wire)
	if err != nil {
		return cp
	}
	var decoded bsonCheckpoint
	if err := bson.Unmarshal(raw, &decoded); err != nil {
		return cp
	}
	return checkpoint{pc: decoded.PC}
}
