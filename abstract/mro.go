package abstract

import "fmt"

// Linearize computes the method resolution order of a class using the C3
// merge of its bases' linearizations plus the base list itself. The result
// is a pure function of the declared bases, so attribute lookup order never
// depends on query order. The computed order is cached on the class.
func Linearize(c *Class) ([]*Class, error) {
	if c.mro != nil || c.mroErr != nil {
		return c.mro, c.mroErr
	}

	seqs := make([][]*Class, 0, len(c.Bases)+2)
	for _, b := range c.Bases {
		bm, err := Linearize(b)
		if err != nil {
			c.mroErr = err
			return nil, err
		}
		seqs = append(seqs, append([]*Class(nil), bm...))
	}
	if len(c.Bases) > 0 {
		seqs = append(seqs, append([]*Class(nil), c.Bases...))
	}

	merged, err := c3Merge(seqs)
	if err != nil {
		c.mroErr = fmt.Errorf("class %s: %w", c.Name, err)
		return nil, c.mroErr
	}

	c.mro = append([]*Class{c}, merged...)
	return c.mro, nil
}

// c3Merge repeatedly takes the first head that appears in no sequence's
// tail. Failure means the declared bases are inconsistent (no total order
// exists).
func c3Merge(seqs [][]*Class) ([]*Class, error) {
	var out []*Class
	for {
		// Drop exhausted sequences.
		live := seqs[:0]
		for _, s := range seqs {
			if len(s) > 0 {
				live = append(live, s)
			}
		}
		seqs = live
		if len(seqs) == 0 {
			return out, nil
		}

		var picked *Class
		for _, s := range seqs {
			head := s[0]
			if inAnyTail(head, seqs) {
				continue
			}
			picked = head
			break
		}
		if picked == nil {
			return nil, fmt.Errorf("inconsistent base hierarchy (C3 merge failed)")
		}

		out = append(out, picked)
		for i, s := range seqs {
			if len(s) > 0 && s[0] == picked {
				seqs[i] = s[1:]
			}
		}
	}
}

func inAnyTail(c *Class, seqs [][]*Class) bool {
	for _, s := range seqs {
		for _, t := range s[1:] {
			if t == c {
				return true
			}
		}
	}
	return false
}
