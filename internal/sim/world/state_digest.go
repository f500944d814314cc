package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"

	"shadowchase.ai/internal/sim/geom"
)

// stateDigest hashes everything that influences future ticks. Two worlds fed
// the same inputs produce the same digest sequence.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, nowTick)
	h.Write([]byte(w.cfg.ID))

	t := w.target
	digestWriteVec(h, &tmp, t.Pos)
	digestWriteVec(h, &tmp, t.Facing)
	digestWriteF64(h, &tmp, t.Health)
	h.Write([]byte{boolByte(t.Alive), boolByte(t.steered)})
	digestWriteU64(h, &tmp, uint64(t.routeIdx))
	digestWriteVec(h, &tmp, t.steerDir)
	digestWriteU64(h, &tmp, uint64(len(w.controllers)))

	for _, p := range w.pursuers {
		h.Write([]byte(p.ID))
		digestWriteVec(h, &tmp, p.Pos)
		digestWriteF64(h, &tmp, p.Cooldown())
		h.Write([]byte(p.LastAction()))
		lt, hasPlan := p.LastTarget()
		h.Write([]byte{boolByte(hasPlan)})
		digestWriteVec(h, &tmp, lt)
		digestWriteU64(h, &tmp, uint64(p.Cursor()))
		wps := p.CurrentWaypoints()
		digestWriteU64(h, &tmp, uint64(len(wps)))
		for _, wp := range wps {
			digestWriteVec(h, &tmp, wp)
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}

func digestWriteU64(h hash.Hash, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteF64(h hash.Hash, tmp *[8]byte, v float64) {
	digestWriteU64(h, tmp, math.Float64bits(v))
}

func digestWriteVec(h hash.Hash, tmp *[8]byte, v geom.Vec2) {
	digestWriteF64(h, tmp, v.X)
	digestWriteF64(h, tmp, v.Y)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
