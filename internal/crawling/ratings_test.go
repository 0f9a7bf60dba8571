package crawling

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonathan/plan-auditor/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func review(id, name string, rating float64, comment string) types.Review {
	return types.Review{
		Course:  types.ReviewCourse{ID: types.CourseKey(id), Name: name, Teacher: "李老师"},
		Rating:  rating,
		Comment: comment,
	}
}

func TestAggregateRatings(t *testing.T) {
	reviews := []types.Review{
		review("101", "数据结构", 5, "好"),
		review("202", "线性代数", 3, "一般"),
		review("101", "数据结构", 4, "不错"),
		review("", "无编号", 1, "ignored"),
		review("101", "数据结构", 3, "难"),
	}

	got := AggregateRatings(reviews)
	want := []types.CourseRating{
		{CourseID: "101", CourseName: "数据结构", Teacher: "李老师", Rating: 4, CommentCount: 3, Comments: []string{"好", "不错", "难"}},
		{CourseID: "202", CourseName: "线性代数", Teacher: "李老师", Rating: 3, CommentCount: 1, Comments: []string{"一般"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("AggregateRatings() mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregateRatings_Empty(t *testing.T) {
	got := AggregateRatings(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMergeRatings_RunningAverage(t *testing.T) {
	existing := []types.CourseRating{
		{CourseID: "101", CourseName: "数据结构", Rating: 4, CommentCount: 3, Comments: []string{"a", "b", "c"}},
	}
	got := MergeRatings(existing, []types.Review{review("101", "数据结构", 2, "d")})

	require.Len(t, got, 1)
	assert.InDelta(t, 3.5, got[0].Rating, 1e-9)
	assert.Equal(t, 4, got[0].CommentCount)
	assert.Equal(t, []string{"a", "b", "c", "d"}, got[0].Comments)
	assert.Equal(t, "李老师", got[0].Teacher)

	assert.Equal(t, 3, existing[0].CommentCount)
	assert.Len(t, existing[0].Comments, 3)
}

func TestBuildRatingSet(t *testing.T) {
	set := BuildRatingSet(&CrawlResult{RemoteCount: 7, Reviews: []types.Review{review("1", "x", 5, "")}})
	assert.Equal(t, 7, set.TotalCount)
	assert.Len(t, set.Courses, 1)

	empty := BuildRatingSet(nil)
	assert.NotNil(t, empty.Courses)
}

func TestSaveAndLoadRatings(t *testing.T) {
	set := &types.RatingSet{
		Courses: []types.CourseRating{
			{CourseID: "101", CourseName: "数据结构", Teacher: "李老师", Rating: 4.5, CommentCount: 2, Comments: []string{"好", "难"}},
		},
		TotalCount: 2,
		UpdatedAt:  time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC),
	}

	for _, name := range []string{"ratings.json", "ratings.yaml", "ratings.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			require.NoError(t, SaveRatings(path, set))

			loaded, err := LoadRatings(path)
			require.NoError(t, err)
			assert.Equal(t, set.TotalCount, loaded.TotalCount)
			assert.True(t, set.UpdatedAt.Equal(loaded.UpdatedAt))
			assert.Equal(t, set.Courses, loaded.Courses)
		})
	}
}

func TestLoadRatings_MissingFile(t *testing.T) {
	set, err := LoadRatings(filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, err)
	assert.Zero(t, set.TotalCount)
	assert.NotNil(t, set.Courses)
}

func TestSaveRatings_Nil(t *testing.T) {
	err := SaveRatings(filepath.Join(t.TempDir(), "x.json"), nil)
	var crawlErr *CrawlError
	assert.ErrorAs(t, err, &crawlErr)
}
