package btree

import "github.com/ngina-wtf/pagetree/pageio"

// Shape is a walked census of the tree's nodes, used by diagnostics and
// by tuning comparisons (the pack optimization's fewer-nodes claim is
// checked against exactly this).
type Shape struct {
	LeafNodes   uint64
	BranchNodes uint64
	FreePages   uint64
}

// WalkShape visits every node reachable from the root, plus the free
// list, and counts them by kind.
func (t *Tree) WalkShape() (Shape, error) {
	var s Shape
	if err := t.countSubtree(t.header.RootNodeID, &s); err != nil {
		return Shape{}, err
	}
	id := t.header.FreeListHeadID
	for id != pageio.NullPageID {
		v, err := t.getNode(id)
		if err != nil {
			return Shape{}, err
		}
		s.FreePages++
		next := t.l.order.Uint32(v.buf()[pageio.NodePrologueSize : pageio.NodePrologueSize+4])
		v.h.Release()
		id = next
	}
	return s, nil
}

func (t *Tree) countSubtree(id uint32, s *Shape) error {
	v, err := t.getNode(id)
	if err != nil {
		return err
	}
	if v.isLeaf() {
		s.LeafNodes++
		v.h.Release()
		return nil
	}
	s.BranchNodes++
	n := v.count()
	children := make([]uint32, 0, n+1)
	for i := uint32(0); i <= n; i++ {
		children = append(children, v.branchChild(i))
	}
	v.h.Release()
	for _, c := range children {
		if err := t.countSubtree(c, s); err != nil {
			return err
		}
	}
	return nil
}
