package query

// DeletedAtColumn is the soft-delete marker column.
const DeletedAtColumn = "deleted_at"

// NotDeleted is the condition that hides soft-deleted rows of table.
func NotDeleted(table string) Condition {
	return Condition{Column: table + "." + DeletedAtColumn, Op: OpExists, Value: false}
}

// ExcludeDeleted returns a copy of w that only matches live rows: it adds a
// NotDeleted condition for source and for every join alias, and recursively
// for the class of every nested subquery. w is not modified.
func ExcludeDeleted(w Where, source string, joins []Join) Where {
	out := ExcludeDeletedNested(w)
	out = append(out, NotDeleted(source))
	for _, j := range joins {
		out = append(out, NotDeleted(j.Alias))
	}
	return out
}

// ExcludeDeletedNested returns a copy of w in which every nested subquery,
// at any depth, only matches live rows of its class. Conditions on w's own
// table are left alone; join filters go through here.
func ExcludeDeletedNested(w Where) Where {
	if w == nil {
		return nil
	}
	out := make(Where, 0, len(w)+1)
	for _, c := range w {
		if c.Sub != nil {
			sub := excludeSub(*c.Sub)
			c.Sub = &sub
		}
		if c.Subs != nil {
			subs := make([]Subquery, len(c.Subs))
			for i, s := range c.Subs {
				subs[i] = excludeSub(s)
			}
			c.Subs = subs
		}
		out = append(out, c)
	}
	return out
}

func excludeSub(s Subquery) Subquery {
	s.Where = append(ExcludeDeletedNested(s.Where), NotDeleted(s.ClassName))
	return s
}
