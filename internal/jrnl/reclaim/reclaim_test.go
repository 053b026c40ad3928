package reclaim_test

import (
	"testing"

	tst "github.com/julianstephens/go-utils/tests"
	"github.com/julianstephens/jrnl/internal/jrnl/reclaim"
)

func sealed(id uint64, pins int) reclaim.FileUsage {
	return reclaim.FileUsage{ID: id, Pins: pins, Sealed: true}
}

func TestPrefixReclaimer(t *testing.T) {
	testCases := []struct {
		name     string
		minFiles int
		files    []reclaim.FileUsage
		want     int
	}{
		{
			name:  "empty",
			files: nil,
			want:  0,
		},
		{
			name:  "all unpinned except active",
			files: []reclaim.FileUsage{sealed(1, 0), sealed(2, 0), {ID: 3}},
			want:  2,
		},
		{
			name:  "stops at first pinned file",
			files: []reclaim.FileUsage{sealed(1, 0), sealed(2, 1), sealed(3, 0), {ID: 4}},
			want:  1,
		},
		{
			name:  "pinned head blocks everything",
			files: []reclaim.FileUsage{sealed(1, 3), sealed(2, 0), {ID: 3}},
			want:  0,
		},
		{
			name:  "never deletes the active file",
			files: []reclaim.FileUsage{{ID: 1}},
			want:  0,
		},
		{
			name:     "keeps min files",
			minFiles: 2,
			files:    []reclaim.FileUsage{sealed(1, 0), sealed(2, 0), sealed(3, 0), {ID: 4}},
			want:     2,
		},
		{
			name:     "min files larger than journal",
			minFiles: 5,
			files:    []reclaim.FileUsage{sealed(1, 0), {ID: 2}},
			want:     0,
		},
		{
			name: "commit in a later file holds back its operations",
			files: []reclaim.FileUsage{
				{ID: 1, Sealed: true, RequiredBy: 3},
				sealed(2, 0),
				sealed(3, 1),
				{ID: 4},
			},
			want: 0,
		},
		{
			name: "commit inside the prefix goes with it",
			files: []reclaim.FileUsage{
				{ID: 1, Sealed: true, RequiredBy: 2},
				sealed(2, 0),
				sealed(3, 2),
				{ID: 4},
			},
			want: 2,
		},
		{
			name: "partial prefix before a pending dependency",
			files: []reclaim.FileUsage{
				sealed(1, 0),
				{ID: 2, Sealed: true, RequiredBy: 4},
				sealed(3, 0),
				sealed(4, 1),
				{ID: 5},
			},
			want: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := reclaim.PrefixReclaimer{MinFiles: tc.minFiles}.Reclaimable(tc.files)
			tst.AssertEqual(t, got, tc.want, "reclaimable")
		})
	}
}
