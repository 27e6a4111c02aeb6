// Package licenses classifies dependency license files against a set of
// SPDX license templates.
package licenses

import (
	"regexp"
	"strings"
)

// Unknown is reported when no license file exists for a dependency.
const Unknown = "UNKNOWN"

// CustomPrefix marks licenses that have a file but match no SPDX template.
// The prefix is followed by a URL pointing at the license file.
const CustomPrefix = "Custom;"

var whitespaceRun = regexp.MustCompile(`\s+`)

// loose compiles a license template so that any whitespace run in the
// template matches any whitespace run in the text. License files are
// rewrapped freely, so token order is all that can be relied on.
func loose(src string) *regexp.Regexp {
	return regexp.MustCompile(whitespaceRun.ReplaceAllString(src, `\s*`))
}

const bsd2Text = "Redistribution and use in source and binary forms, with or without " +
	"modification, are permitted provided that the following conditions " +
	"are met: " +
	"1\\. Redistributions of source code must retain the above copyright " +
	"notice, this list of conditions and the following disclaimer\\. " +
	"2\\. Redistributions in binary form must reproduce the above copyright " +
	"notice, this list of conditions and the following disclaimer in the " +
	"documentation and/or other materials provided with the distribution\\. " +
	"THIS SOFTWARE IS PROVIDED BY .+ (``|''|\")AS IS(''|\") AND ANY EXPRESS OR " +
	"IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES " +
	"OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE DISCLAIMED\\. " +
	"IN NO EVENT SHALL .+ BE LIABLE FOR ANY DIRECT, INDIRECT, " +
	"INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES \\(INCLUDING, BUT " +
	"NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, " +
	"DATA, OR PROFITS; OR BUSINESS INTERRUPTION\\) HOWEVER CAUSED AND ON ANY " +
	"THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT " +
	"\\(INCLUDING NEGLIGENCE OR OTHERWISE\\) ARISING IN ANY WAY OUT OF THE USE OF " +
	"THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE\\."

const bsd3Text = "Redistribution and use in source and binary forms, with or without " +
	"modification, are permitted provided that the following conditions " +
	"are met: " +
	"(1\\.)? Redistributions of source code must retain the above copyright " +
	"notice, this list of conditions and the following disclaimer\\. " +
	"(2\\.)? Redistributions in binary form must reproduce the above copyright " +
	"notice, this list of conditions and the following disclaimer in the " +
	"documentation and/or other materials provided with the distribution\\. " +
	"((3\\.)? The name of .+ may not be used to endorse or promote products " +
	"derived from this software without specific prior written permission\\.|" +
	"(3\\.)? Neither the name of .+ nor the names of its " +
	"contributors may be used to endorse or promote products derived from " +
	"this software without specific prior written permission\\.) " +
	"THIS SOFTWARE IS PROVIDED BY .+ (``|''|\")AS IS(''|\") AND ANY EXPRESS OR " +
	"IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES " +
	"OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE DISCLAIMED\\. " +
	"IN NO EVENT SHALL .+ BE LIABLE FOR ANY DIRECT, INDIRECT, " +
	"INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES \\(INCLUDING, BUT " +
	"NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, " +
	"DATA, OR PROFITS; OR BUSINESS INTERRUPTION\\) HOWEVER CAUSED AND ON ANY " +
	"THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT " +
	"\\(INCLUDING NEGLIGENCE OR OTHERWISE\\) ARISING IN ANY WAY OUT OF THE USE OF " +
	"THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE\\."

const mitText = "Permission is hereby granted, free of charge, to any person obtaining a copy of " +
	"this software and associated documentation files \\(the \"Software\"\\), to deal in " +
	"the Software without restriction, including without limitation the rights to " +
	"use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies " +
	"of the Software, and to permit persons to whom the Software is furnished to do " +
	"so, subject to the following conditions: " +
	"The above copyright notice and this permission notice shall be included in all " +
	"copies or substantial portions of the Software\\. " +
	"THE SOFTWARE IS PROVIDED \"AS IS\", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR " +
	"IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, " +
	"FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT\\. IN NO EVENT SHALL THE " +
	"AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER " +
	"LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, " +
	"OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE " +
	"SOFTWARE\\."

type template struct {
	id string
	re *regexp.Regexp
}

// templates in matching order. The most specific templates come first so
// that, for example, a three-clause BSD text is never reported as BSD-2-Clause
// and a CDDL 1.1 text is never reported as CDDL-1.0.
var templates = []template{
	{"Apache-2.0", regexp.MustCompile(`Apache.*License.*(v|V)ersion.*2\.0`)},
	{"MIT", loose(mitText)},
	{"BSD-3-Clause", loose(bsd3Text)},
	{"BSD-2-Clause", loose(bsd2Text)},
	{"LGPL-3.0", regexp.MustCompile(`GNU LESSER GENERAL PUBLIC LICENSE.*Version 3`)},
	{"CDDL-1.1", regexp.MustCompile(`COMMON DEVELOPMENT AND DISTRIBUTION LICENSE.*Version 1\.1`)},
	{"CDDL-1.0", regexp.MustCompile(`COMMON DEVELOPMENT AND DISTRIBUTION LICENSE.*Version 1\.0`)},
	{"ICU", regexp.MustCompile(`ICU License - ICU 1\.8\.1 and later`)},
	{"MPL-2.0", regexp.MustCompile(`Mozilla\s*Public\s*License\s*Version\s*2\.0`)},
	{"MPL-1.1", regexp.MustCompile(`Mozilla Public License.*Version 1\.1`)},
}

// Identifiers returns the SPDX identifiers known to the classifier, in
// matching order.
func Identifiers() []string {
	ids := make([]string, len(templates))
	for i, t := range templates {
		ids[i] = t.id
	}
	return ids
}

// Normalize flattens license text for template matching. Asterisks are
// dropped because some license files are wrapped in comment blocks, and
// all whitespace runs collapse to a single space.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "*", " ")
	return strings.Join(strings.Fields(text), " ")
}

// MatchSPDX normalizes the given license text and reports the identifier of
// the first template it matches.
func MatchSPDX(text string) (string, bool) {
	normalized := Normalize(text)
	for _, t := range templates {
		if t.re.MatchString(normalized) {
			return t.id, true
		}
	}
	return "", false
}
