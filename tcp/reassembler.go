package tcp

import "github.com/loopstack/mintcp/internal"

// fragment is a contiguous run of not-yet-assembled stream bytes starting
// at absolute index begin.
type fragment struct {
	begin uint64
	data  []byte
}

func (f fragment) end() uint64 { return f.begin + uint64(len(f.data)) }

// Reassembler recovers a contiguous byte stream from out-of-order,
// possibly overlapping, possibly truncated fragments and writes the
// recovered prefix into a downstream [ByteStream] as soon as it becomes
// available.
type Reassembler struct {
	blocks    []fragment // sorted by begin; no two overlap or touch.
	scratch   []fragment // alternates with blocks across insertMerge calls, to avoid reallocating.
	headIndex uint64     // next application-stream byte index awaiting assembly.
	eofFlag   bool
	output    *ByteStream
}

// NewReassembler returns a Reassembler that writes into output.
func NewReassembler(output *ByteStream) *Reassembler {
	return &Reassembler{output: output}
}

// PushSubstring integrates a fragment representing stream bytes
// [index, index+len(data)), closing the output stream once eof has been
// signaled on a fully-accepted fragment and no fragment remains stored.
// An eof fragment with no data is never stored, so one whose index lies
// beyond the head closes the stream without waiting for the bytes before it.
func (r *Reassembler) PushSubstring(data []byte, index uint64, eof bool) {
	trimmedForCapacity := false

	end := index + uint64(len(data))
	switch {
	case end <= r.headIndex:
		// already assembled; nothing left to store, but eof still sticks.
		data = nil
	case index < r.headIndex:
		drop := r.headIndex - index
		data = data[drop:]
		index = r.headIndex
	}

	if len(data) > 0 {
		capacityEnd := r.headIndex + uint64(r.output.Capacity()) - uint64(r.output.BufferSize())
		switch {
		case index >= capacityEnd:
			data = nil
			trimmedForCapacity = true
		case index+uint64(len(data)) > capacityEnd:
			data = data[:capacityEnd-index]
			trimmedForCapacity = true
		}
	}

	if len(data) > 0 {
		r.insertMerge(index, data)
	}
	if eof && !trimmedForCapacity {
		r.eofFlag = true
	}

	r.flush()

	if r.eofFlag && len(r.blocks) == 0 {
		r.output.EndInput()
	}
}

// insertMerge inserts a non-empty fragment, merging it with any stored
// fragment it overlaps or touches.
func (r *Reassembler) insertMerge(begin uint64, data []byte) {
	next := fragment{begin: begin, data: data}

	i := 0
	for i < len(r.blocks) && r.blocks[i].end() < next.begin {
		i++
	}
	j := i
	for j < len(r.blocks) && r.blocks[j].begin <= next.end() {
		next = mergeTwo(next, r.blocks[j])
		j++
	}

	internal.SliceReuse(&r.scratch, len(r.blocks)-(j-i)+1)
	r.scratch = append(r.scratch, r.blocks[:i]...)
	r.scratch = append(r.scratch, next)
	r.scratch = append(r.scratch, r.blocks[j:]...)
	r.blocks, r.scratch = r.scratch, r.blocks
}

// mergeTwo merges two overlapping or touching fragments into one, per the
// rule: the later fragment's bytes extend the earlier one past any
// overlap.
func mergeTwo(a, b fragment) fragment {
	if a.begin > b.begin {
		a, b = b, a
	}
	if a.end() >= b.end() {
		return a // a covers b entirely.
	}
	ov := a.end() - b.begin // bytes of b already present in a; may be 0 if merely touching.
	merged := make([]byte, 0, len(a.data)+len(b.data)-int(ov))
	merged = append(merged, a.data...)
	merged = append(merged, b.data[ov:]...)
	return fragment{begin: a.begin, data: merged}
}

// flush writes every stored fragment that has become contiguous with
// head_index into the output stream.
func (r *Reassembler) flush() {
	for len(r.blocks) > 0 && r.blocks[0].begin == r.headIndex {
		b := r.blocks[0]
		n := r.output.Write(b.data)
		r.headIndex += uint64(n)
		if n < len(b.data) {
			r.blocks[0] = fragment{begin: r.headIndex, data: b.data[n:]}
			return
		}
		r.blocks = r.blocks[1:]
	}
}

// HeadIndex is the next application-stream byte index awaiting assembly.
func (r *Reassembler) HeadIndex() uint64 { return r.headIndex }

// Empty reports whether no fragment is currently stored.
func (r *Reassembler) Empty() bool { return len(r.blocks) == 0 }

// UnassembledBytes is the total length of all stored, not-yet-contiguous
// fragments.
func (r *Reassembler) UnassembledBytes() int {
	n := 0
	for _, b := range r.blocks {
		n += len(b.data)
	}
	return n
}
