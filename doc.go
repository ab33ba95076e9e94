/*
Command linker grows short tracks of transient detections into longer tracks
of moving objects.

# Contents

	Program overview
	Command line usage
	Configuration
	File formats
	Algorithm outline

# Program overview

Input is a catalog of detections, each a position on the sky at a time with
an astrometric uncertainty, and a set of seed tracks, usually triplets of
detections from two nights.  Output is a set of longer tracks, each with the
χ² of an orbit fit through all of its detections.

Orbit fitting, position prediction and candidate scoring are not done by
linker itself.  It runs external programs, BulkFit, BulkPredict and
BulkProximity, exchanging CSV files with them in a work directory.  The
names of the programs are configurable.

A complete session on a synthetic catalog, using an in-process oracle in
place of the external programs:

	linker simulate --objects 20 --noise 500

A session on real data:

	linker sift seeds.csv -d dets.csv -o sifted.gob
	linker grow sifted.gob -d dets.csv --hypotheses -o hyp.gob
	linker merge hyp.gob -d dets.csv -o linked.gob
	linker eval linked.gob -d dets.csv
	linker script linked.gob -d dets.csv -o obj

# Command line usage

	linker [global flags] <command> [flags] [args]

Global flags:

	--config    config file, default linker.toml in the working or home directory
	--work-dir  directory for oracle request and result files
	--overwrite rerun oracle programs even if their result files exist
	--run       run id; oracle files are named <run>-<batch>.<kind>.csv
	--dets, -d  detection catalog
	--stage     stage read from a track database
	--verbose   debug logging

Commands:

	sift      fit tracks and keep those with good fits
	grow      find candidate detections for tracks
	merge     merge tracks sharing detections, or with --fake by fake id
	script    write observation files for an orbit fitter
	eval      score tracks against fake ids of the catalog
	simulate  link a synthetic catalog with an in-process oracle

Without --run a random run id is chosen, so that oracle files from earlier
runs are never reused by accident.  Giving the run id of an earlier run
reuses its oracle results unless --overwrite is set.

# Configuration

Settings come from built in defaults, then the config file, then environment
variables, then command line flags.  Environment variables are the
upper-cased key with a LINKER_ prefix and dots replaced by underscores, for
example LINKER_GROW_ERR_SIZE.  The effective configuration of each run is
written to <work dir>/<run>.toml.

	[grow]
	interval = 2          # bucket width, days
	err_size = 2          # search radius in prediction uncertainties
	max_cands = 20        # candidates per track and time
	final_max_cands = 100 # candidates per track after scoring
	margin = 0            # days around the track searched, 0 for all
	sigma_factor = 10     # keep candidates scoring below err_size*sigma_factor
	min_err = 0           # floor on prediction uncertainty, arcsec
	min_cands = 2         # tracks with fewer candidates are dropped

	[merge]
	threshold = 10        # χ² per degree of freedom for merged tracks
	init_threshold = 30   # threshold reported for the initial fit
	overlap_divisor = 2   # tracks sharing max(len)/divisor+offset
	overlap_offset = 1    #   detections are merge partners
	max_passes = 0        # 0 runs to a fixed point
	min_real_length = 5   # distinct exposures required in output tracks

	[sift]
	threshold = 50

	[oracle]
	predict = "BulkPredict"
	fit = "BulkFit"
	proximity = "BulkProximity"
	elements = ""         # optional, run after each fit
	fit_args = []

# File formats

The detection catalog is CSV with a header line.  Required columns are
objid, mjd, ra, dec, err and expnum; ccd and fakeid are optional.  The survey
names SNOBJID, ERRAWIN_WORLD, CCDNUM and SNFAKE_ID are accepted.  RA, Dec
and err are degrees.

Track files are chosen by extension.  A .db or .sqlite file is a track
database holding tracks by run and stage.  A .gob file holds tracks with
their fits and candidates.  A .txt output file is a readable listing.  Any
other file holds one track per line: the track id, a colon, and detection
ids separated by commas or spaces, as in "7: 101,102,140".  The track id may
be left out, in which case tracks are numbered by line.

# Algorithm outline

 1. Detections are projected onto a plane tangent to the sky at the first
    detection of the first track, and grouped into buckets by time.  Each bucket
    is indexed by a k-d tree.

 2. For each track, positions are predicted at the bucket times.  The
    search radius at a time is the largest distance to a neighboring bucket's
    prediction plus its uncertainty times err_size.  The nearest detections
    within the radius become candidates.

 3. Candidates are scored against each track's orbit and the best kept.
    Each candidate makes a hypothesis track: the track plus the candidate.

 4. Hypotheses are merged in passes.  Each pass visits tracks in id order
    and pairs a track with the lowest numbered track sharing enough detections.
    The union of each pair is fit; a good fit replaces the pair, otherwise the
    better of the two survives.  Passes continue until nothing changes.

 5. Tracks with fewer than min_real_length distinct exposures are dropped.

-------------
Public domain.
*/
package main
