package feed

// Reconciler diffs a freshly parsed Document against the persisted
// Snapshot for the same show and produces a Plan. It performs no I/O:
// reading the snapshot and applying the plan are the store adapter's job,
// which keeps the diff logic deterministic and testable in isolation.
//
// Episodes present in the snapshot but absent from the document are left
// untouched: feeds routinely truncate old entries, so absence is not
// evidence of deletion.
type Reconciler struct{}

func NewReconciler() *Reconciler {
	return &Reconciler{}
}

func (r *Reconciler) Run(snapshot Snapshot, doc *Document) Plan {
	var plan Plan

	if doc.Show.Fingerprint != snapshot.ShowFingerprint {
		show := doc.Show
		plan.ShowUpdate = &show
	}

	for _, episode := range doc.Episodes {
		existing, ok := snapshot.Episodes[episode.GUID]
		switch {
		case !ok:
			plan.EpisodeUpserts = append(plan.EpisodeUpserts, EpisodeUpsert{
				Kind:    UpsertInsert,
				Episode: episode,
			})
		case existing != episode.Fingerprint:
			plan.EpisodeUpserts = append(plan.EpisodeUpserts, EpisodeUpsert{
				Kind:    UpsertUpdate,
				Episode: episode,
			})
		}
		// Matching fingerprints reconcile to nothing: re-ingesting an
		// unchanged feed must produce zero writes.
	}

	return plan
}
