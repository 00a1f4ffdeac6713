package testutil

// WithStandardTestData adds two users and six tasks covering every field kind.
func (b *Builder) WithStandardTestData() *Builder {
	return b.
		WithUser("42", "test", 30).
		WithUser("7", "minor", 16).
		WithTask("t1", "42", Content("test"), Deleted(), Priority(1), Score(2.5), Tags("a", "b", "c")).
		WithTask("t2", "42", Content("write docs"), Priority(2), Score(1.0), Tags("docs")).
		WithTask("t3", "42", Content("fix 100% bug"), Priority(0), Score(9.5), Tags("a", "urgent")).
		WithTask("t4", "7", Content("homework"), Priority(3), Score(4.0), Tags("school")).
		WithTask("t5", "7", Content("test prep"), Deleted(), Priority(1), Score(4.0)).
		WithTask("t6", "7", Content("under_score"), Priority(2), Score(0.5), Tags("a"))
}
