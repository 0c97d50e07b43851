package hs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileTest(t *testing.T, mode ScanMode, patterns ...Pattern) *Database {
	t.Helper()
	db, err := Compile(patterns, mode)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCompile_EmptyPatternSetPanics(t *testing.T) {
	assert.Panics(t, func() { Compile(nil, ModeBlock) })
}

func TestCompile_Rejected(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"malformed", `foo(bar`},
		{"unsupported backreference", `(a)\1`},
		{"empty", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			good := MustPattern("ok", 0, 1)
			bad := MustPattern(tt.expr, 0, 42)

			db, err := Compile([]Pattern{good, bad}, ModeBlock)
			require.Error(t, err)
			assert.Nil(t, db)
			assert.True(t, errors.Is(err, ErrCompiler))

			var cerr *CompileError
			require.ErrorAs(t, err, &cerr)
			assert.NotEmpty(t, cerr.Message)
			assert.Equal(t, 1, cerr.Expression)
			assert.True(t, cerr.HasPatternID)
			assert.Equal(t, uint32(42), cerr.PatternID)
		})
	}
}

func TestDatabase_Queries(t *testing.T) {
	db := compileTest(t, ModeStream, MustPattern("hello", 0, 0))
	assert.Equal(t, ModeStream, db.Mode())

	size, err := db.Size()
	require.NoError(t, err)
	assert.Positive(t, size)

	streamSize, err := db.StreamSize()
	require.NoError(t, err)
	assert.Positive(t, streamSize)

	info, err := db.Info()
	require.NoError(t, err)
	assert.Contains(t, info, "Mode: STREAM")
	assert.Contains(t, info, Version()[:3])
}

func TestDatabase_StreamSizeRequiresStreamMode(t *testing.T) {
	db := compileTest(t, ModeBlock, MustPattern("hello", 0, 0))
	_, err := db.StreamSize()
	assert.ErrorIs(t, err, ErrModeMismatch)
}

func TestDatabase_CloseIsIdempotent(t *testing.T) {
	db, err := Compile([]Pattern{MustPattern("x", 0, 0)}, ModeBlock)
	require.NoError(t, err)

	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	_, err = db.Size()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = db.Serialize()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = NewScratch(db)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSerialize_RoundTripPreservesSize(t *testing.T) {
	for _, mode := range []ScanMode{ModeBlock, ModeStream, ModeVectored} {
		t.Run(mode.String(), func(t *testing.T) {
			db := compileTest(t, mode,
				MustPattern("test", 0, 0),
				MustPattern(`w[o0]rld`, Caseless, 1),
			)

			sdb, err := db.Serialize()
			require.NoError(t, err)
			defer sdb.Close()
			assert.Positive(t, sdb.Len())

			info, err := sdb.Info()
			require.NoError(t, err)
			dbInfo, err := db.Info()
			require.NoError(t, err)
			assert.Equal(t, dbInfo, info)

			restored, err := sdb.Deserialize()
			require.NoError(t, err)
			defer restored.Close()

			want, err := db.Size()
			require.NoError(t, err)
			got, err := restored.Size()
			require.NoError(t, err)
			assert.Equal(t, want, got)

			deserialized, err := sdb.DeserializedSize()
			require.NoError(t, err)
			assert.Equal(t, want, deserialized)

			assert.Equal(t, mode, restored.Mode())
		})
	}
}

func TestMarshalBinary_RoundTrip(t *testing.T) {
	db := compileTest(t, ModeBlock, MustPattern("hello", 0, 3))

	data, err := db.MarshalBinary()
	require.NoError(t, err)
	require.NotEmpty(t, data)

	restored, err := UnmarshalDatabase(data)
	require.NoError(t, err)
	defer restored.Close()

	scanner, err := NewBlockScanner(restored)
	require.NoError(t, err)
	defer scanner.Close()

	var events []MatchEvent
	_, err = scanner.Scan([]byte("say hello"), Collect(&events))
	require.NoError(t, err)
	assert.Equal(t, []MatchEvent{{ID: 3, To: 9}}, events)
}

func TestUnmarshalDatabase_SomHorizon(t *testing.T) {
	mode := ModeStream | ModeSomHorizonLarge
	db := compileTest(t, mode, MustPattern(`w[o0]rld`, SomLeftMost, 1))
	assert.Equal(t, mode, db.Mode())

	data, err := db.MarshalBinary()
	require.NoError(t, err)

	base, err := UnmarshalDatabase(data)
	require.NoError(t, err)
	defer base.Close()
	assert.Equal(t, ModeStream, base.Mode())

	full, err := UnmarshalDatabaseAs(data, mode)
	require.NoError(t, err)
	defer full.Close()
	assert.Equal(t, mode, full.Mode())

	_, err = UnmarshalDatabaseAs(data, ModeBlock)
	assert.ErrorIs(t, err, ErrModeMismatch)

	clone, err := db.Clone()
	require.NoError(t, err)
	defer clone.Close()
	assert.Equal(t, mode, clone.Mode())
}

func TestSerializedDatabase_BytesMatchLen(t *testing.T) {
	db := compileTest(t, ModeBlock, MustPattern("hello", 0, 3))
	sdb, err := db.Serialize()
	require.NoError(t, err)
	defer sdb.Close()

	b := sdb.Bytes()
	assert.Len(t, b, sdb.Len())

	copied := NewSerializedDatabase(b)
	defer copied.Close()
	restored, err := copied.Deserialize()
	require.NoError(t, err)
	defer restored.Close()
}

func TestUnmarshalDatabase_Garbage(t *testing.T) {
	_, err := UnmarshalDatabase([]byte("definitely not a database"))
	assert.Error(t, err)
}

func TestSerializedDatabase_CloseIsIdempotent(t *testing.T) {
	db := compileTest(t, ModeBlock, MustPattern("x", 0, 0))
	sdb, err := db.Serialize()
	require.NoError(t, err)

	require.NoError(t, sdb.Close())
	require.NoError(t, sdb.Close())
	assert.Nil(t, sdb.Bytes())
	_, err = sdb.Deserialize()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDatabase_ManyClonesCloseIndependently(t *testing.T) {
	db := compileTest(t, ModeBlock, MustPattern("needle", 0, 5))

	clones := make([]*Database, 0, 100)
	for i := 0; i < 100; i++ {
		c, err := db.Clone()
		require.NoError(t, err)
		clones = append(clones, c)
	}

	// Close the original first; every clone must keep working.
	require.NoError(t, db.Close())

	for i, c := range clones {
		if i%10 == 0 {
			scanner, err := NewBlockScanner(c)
			require.NoError(t, err)
			var events []MatchEvent
			_, err = scanner.Scan([]byte("hay needle hay"), Collect(&events))
			require.NoError(t, err)
			assert.Len(t, events, 1)
			require.NoError(t, scanner.Close())
		}
		require.NoError(t, c.Close())
	}
}

func TestExpressionInfo(t *testing.T) {
	info, err := ExpressionInfo(MustPattern("abc", 0, 0))
	require.NoError(t, err)
	assert.Equal(t, uint32(3), info.MinWidth)
	assert.Equal(t, uint32(3), info.MaxWidth)
	assert.False(t, info.Unbounded)

	info, err = ExpressionInfo(MustPattern("ab+", 0, 0))
	require.NoError(t, err)
	assert.Equal(t, uint32(2), info.MinWidth)
	assert.True(t, info.Unbounded)

	info, err = ExpressionInfo(MustPattern("end$", 0, 0))
	require.NoError(t, err)
	assert.True(t, info.MatchesAtEOD)

	_, err = ExpressionInfo(MustPattern("a(", 0, 0))
	var cerr *CompileError
	assert.ErrorAs(t, err, &cerr)
}

func TestPlatform(t *testing.T) {
	assert.NotEmpty(t, Version())
	assert.NoError(t, ValidPlatform())
}
