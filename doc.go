/*
I2CTRACE recovers I2C bus transactions from analog captures of the SCL and SDA
lines and reports on the signal quality of the bus.

Commands:

	i2ctrace decode [flags] scl.bin sda.bin
	i2ctrace decode --filetype saleae_csv [flags] capture.csv 0 1
	i2ctrace report [flags] scl.bin sda.bin
	i2ctrace generate [flags] '50W:00,10;50R:aa,bb'
	i2ctrace version

Captures are Saleae Logic analog binary exports, one file per line, or a
Saleae CSV export holding both lines. For CSV the two trailing arguments are
the zero based data columns of SCL and SDA, the time column not counted.
Binary exports compressed with gzip, bzip2 or xz are read transparently.

Global Flags:

	--vbus=5

Sets the nominal bus voltage.

	--threshold-low=30 --threshold-high=70

Sets the hysteresis band in percent of the bus voltage. A line must rise to
the high threshold to read high and fall below the low threshold to read low.

	--config=""

Reads settings from a YAML, TOML or JSON file, by default config.yaml in the
working directory when present. Every setting may be overridden by an
I2CTRACE_ environment variable, dots replaced by underscores:

	bus:
	  voltage: 3.3
	  threshold_low: 30
	  threshold_high: 70
	log:
	  level: info
	  format: text
	output:
	  format: plain
	  dir: .
	filter:
	  addresses: ["0x50", "0x1D"]
	  direction: any
	  complete: false

Flags override both.

	--log-level=info --log-format=text

Log messages go to stderr, transactions to stdout.

Decode Flags:

	--format="plain"

Sets the transaction output format: plain, csv or json. Plain text lists the
devices seen by address followed by one line per transaction:

	  Device 0x50: 1 writes, 1 reads

	     0   0.000020s ->   0.000210s 50Wa: 00a 10a
	     1   0.000230s ->   0.000330s 50Ra: AAn

Each data byte is printed in hex followed by a for acknowledged or n for not
acknowledged. Bytes cut short by the end of the capture print as !! and
missing conditions as ---- ? ----.

For json output each line is an object, there is no root node.

	--address=50,1d --direction=read --complete

Display only matching transactions.

	--pec

Verifies the last data byte of each transaction as an SMBus packet error code.

Report Flags:

	--outdir="."

Writes report.json together with eye diagrams of the bits driven by each
device and by the controller, crosstalk diagrams and transition time
histograms of both lines.
*/
package main
